package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/54b3r/pdfchat-go/internal/errkind"
)

// DefaultTopK is the number of chunks handed to the answer prompt when
// neither the caller nor the settings choose one.
const DefaultTopK = 4

// VectorRetriever answers queries against one index: it embeds the query with
// the same embedder that embedded the chunks and searches the index's store.
type VectorRetriever struct {
	embedder    Embedder
	store       VectorStore
	defaultTopK int
}

var _ Retriever = (*VectorRetriever)(nil)

// NewRetriever binds embedder and store. defaultTopK <= 0 selects [DefaultTopK].
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int) (*VectorRetriever, error) {
	if embedder == nil {
		return nil, errors.New("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, errors.New("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &VectorRetriever{embedder: embedder, store: store, defaultTopK: defaultTopK}, nil
}

// Retrieve returns up to topK chunks for query in the store's order, best
// first. A blank query is
// an [errkind.Invalid] error. Embedding failures keep the embedder's kind;
// search failures are [errkind.ServiceUnavailable].
func (r *VectorRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errkind.New(errkind.Invalid, "rag", "retrieval query must not be empty")
	}
	if topK <= 0 {
		topK = r.defaultTopK
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errkind.New(errkind.ServiceUnavailable, "rag", "embedder returned no vector for the query")
	}

	docs, err := r.store.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, errkind.Wrap(errkind.ServiceUnavailable, "rag: search", err)
	}
	if len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}
