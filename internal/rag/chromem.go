package rag

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
)

// errNoEmbedding is returned if chromem ever needs to embed text itself.
// Every document and query reaching the store is embedded upstream.
var errNoEmbedding = errors.New("chromem: embeddings must be computed by the configured embedder")

// ChromemStore implements VectorStore with an in-memory chromem-go
// collection. chromem normalises vectors and ranks by cosine similarity.
type ChromemStore struct {
	db   *chromem.DB
	coll *chromem.Collection
}

// NewChromemStore creates an empty in-memory store with a collection of its own.
func NewChromemStore() (*ChromemStore, error) {
	db := chromem.NewDB()
	name := "pdfchat-" + uuid.NewString()
	coll, err := db.CreateCollection(name, map[string]string{}, func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbedding
	})
	if err != nil {
		return nil, fmt.Errorf("chromem: failed to create collection: %w", err)
	}
	return &ChromemStore{db: db, coll: coll}, nil
}

// NewChromemFactory returns a StoreFactory producing fresh ChromemStores.
// chromem checks vector sizes itself, so dimensions is not needed.
func NewChromemFactory() StoreFactory {
	return func(context.Context, int) (VectorStore, error) {
		return NewChromemStore()
	}
}

// Upsert adds docs with their embeddings to the collection.
func (s *ChromemStore) Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("chromem: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	if len(docs) == 0 {
		return nil
	}

	batch := make([]chromem.Document, len(docs))
	for i, d := range docs {
		meta := make(map[string]string, len(d.Metadata)+1)
		for k, v := range d.Metadata {
			meta[k] = v
		}
		meta[MetaSource] = d.Source
		batch[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Metadata:  meta,
			Embedding: embeddings[i],
		}
	}

	if err := s.coll.AddDocuments(ctx, batch, runtime.NumCPU()); err != nil {
		return fmt.Errorf("chromem: upsert failed: %w", err)
	}
	return nil
}

// Search returns up to topK documents ranked by cosine similarity.
func (s *ChromemStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	// chromem rejects nResults greater than the collection size.
	n := min(topK, s.coll.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := s.coll.QueryEmbedding(ctx, queryEmbedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: search failed: %w", err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, Document{
			ID:       r.ID,
			Content:  r.Content,
			Source:   r.Metadata[MetaSource],
			Metadata: r.Metadata,
			Score:    r.Similarity,
		})
	}
	return docs, nil
}

// Close drops the collection.
func (s *ChromemStore) Close() error {
	if err := s.db.DeleteCollection(s.coll.Name); err != nil {
		return fmt.Errorf("chromem: failed to drop collection: %w", err)
	}
	return nil
}
