package ingestion

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/54b3r/pdfchat-go/internal/rag"
)

// Splitter breaks page documents into overlapping chunks, trying paragraph,
// line and word boundaries before falling back to a hard character split.
type Splitter struct {
	size     int
	overlap  int
	splitter textsplitter.RecursiveCharacter
}

// NewSplitter returns a Splitter producing chunks of at most size characters
// with overlap characters shared between neighbours.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("ingestion: chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("ingestion: chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Splitter{
		size:    size,
		overlap: overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
	}, nil
}

// SplitDocuments splits each page separately so chunks never span pages.
// Every chunk inherits its page's metadata plus a chunk_index and a stable id.
func (s *Splitter) SplitDocuments(docs []rag.Document) ([]rag.Document, error) {
	var chunks []rag.Document
	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}
		parts, err := s.splitter.SplitText(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("ingestion: split %s: %w", doc.Source, err)
		}
		page := pageNumber(doc.Metadata)
		for i, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			chunks = append(chunks, rag.Document{
				ID:       rag.ChunkID(doc.Source, page, i),
				Content:  part,
				Source:   doc.Source,
				Metadata: chunkMetadata(doc.Metadata, i),
			})
		}
	}
	return chunks, nil
}
