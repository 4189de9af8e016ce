package ingestion

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/54b3r/pdfchat-go/internal/rag"
)

// displayName reduces an upload's client-supplied name to a bare file name.
// Browsers may send full paths; an empty or unusable name becomes
// "document-<n>.pdf" where n is the 1-based upload position.
func displayName(name string, position int) string {
	name = strings.ReplaceAll(name, `\`, "/")
	base := strings.TrimSpace(filepath.Base(name))
	if base == "" || base == "." || base == "/" {
		return fmt.Sprintf("document-%d.pdf", position)
	}
	return base
}

// pageMetadata is attached to every page document.
func pageMetadata(source string, page, total int) map[string]string {
	return map[string]string{
		rag.MetaSource:     source,
		rag.MetaPage:       strconv.Itoa(page),
		rag.MetaTotalPages: strconv.Itoa(total),
	}
}

// chunkMetadata copies the page metadata of parent and adds the chunk index.
func chunkMetadata(parent map[string]string, index int) map[string]string {
	meta := make(map[string]string, len(parent)+1)
	for k, v := range parent {
		meta[k] = v
	}
	meta[rag.MetaChunkIndex] = strconv.Itoa(index)
	return meta
}

// pageNumber reads the page number back out of a document's metadata.
// Documents without one count as page 0.
func pageNumber(meta map[string]string) int {
	n, err := strconv.Atoi(meta[rag.MetaPage])
	if err != nil {
		return 0
	}
	return n
}
