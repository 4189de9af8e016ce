package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/54b3r/pdfchat-go/internal/errkind"
	"github.com/54b3r/pdfchat-go/internal/logging"
	"github.com/54b3r/pdfchat-go/internal/rag"
)

// Upload is one user-supplied PDF.
type Upload struct {
	// Name is the client-supplied file name.
	Name string
	// Data is the raw file content.
	Data []byte
}

// LoadPDFs parses uploads in order and returns one Document per page, in
// upload order then page order. Blank pages are kept so the page count always
// matches the files. Each upload is staged to its own temp file, which is
// removed once parsed. An unreadable upload fails the whole call with an
// [errkind.Parse] error naming the file.
func LoadPDFs(ctx context.Context, uploads []Upload) ([]rag.Document, error) {
	log := logging.FromContext(ctx)

	var docs []rag.Document
	seen := make(map[string]int, len(uploads))
	for i, up := range uploads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := displayName(up.Name, i+1)
		// Chunk ids derive from the name, so repeated names get a suffix.
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s (%d)", name, n+1)
		} else {
			seen[name] = 1
		}
		pages, err := loadPDF(name, up.Data)
		if err != nil {
			return nil, errkind.Wrap(errkind.Parse, "ingestion: "+name, err)
		}
		log.Debug("ingestion: parsed pdf", "file", name, "pages", len(pages))
		docs = append(docs, pages...)
	}
	return docs, nil
}

func loadPDF(name string, data []byte) ([]rag.Document, error) {
	if len(data) == 0 {
		return nil, errors.New("file is empty")
	}

	tmp, err := os.CreateTemp("", "pdfchat-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	return parsePDF(path, name)
}

// parsePDF extracts the plain text of every page. The pdf package panics on
// some malformed inputs; those panics become errors.
func parsePDF(path, source string) (docs []rag.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	if total == 0 {
		return nil, errors.New("pdf has no pages")
	}

	docs = make([]rag.Document, 0, total)
	for i := 1; i <= total; i++ {
		text := ""
		if p := r.Page(i); !p.V.IsNull() {
			text, err = p.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("page %d: %w", i, err)
			}
		}
		docs = append(docs, rag.Document{
			Content:  strings.TrimSpace(text),
			Source:   source,
			Metadata: pageMetadata(source, i, total),
		})
	}
	return docs, nil
}
