// Package rag defines the interfaces for retrieval-augmented generation
// components: vector storage, document retrieval, and embedding.
// Concrete implementations (chromem, Qdrant) satisfy these interfaces so the
// chain layer never depends on a specific backend.
package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Metadata keys carried on every ingested document and chunk.
const (
	MetaSource     = "source"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
	MetaChunkIndex = "chunk_index"
)

// chunkNamespace scopes the deterministic chunk ids generated by [ChunkID].
var chunkNamespace = uuid.MustParse("6f1c3f56-2b8e-4c7a-9a51-0f0d6f3f0c21")

// Document represents one PDF page after ingestion, or one chunk after splitting.
type Document struct {
	// ID is the unique identifier for this document chunk.
	ID string

	// Content is the raw text content.
	Content string

	// Source is the original upload file name.
	Source string

	// Metadata holds page, total_pages, source and chunk_index.
	Metadata map[string]string

	// Score is the similarity score assigned during retrieval.
	// Zero value means the score was not computed.
	Score float32
}

// ChunkID returns a stable UUIDv5 for the index-th chunk of page in source.
func ChunkID(source string, page, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s#%d#%d", source, page, index))).String()
}

// VectorStore is the interface for persisting and searching document embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores a batch of documents with their pre-computed embeddings.
	// embeddings[i] is the vector for docs[i].
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns up to topK documents most similar to queryEmbedding,
	// best first.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error)

	// Close releases the store and everything it holds.
	Close() error
}

// StoreFactory creates a fresh, empty VectorStore for vectors of the given
// size. Every index build gets its own.
type StoreFactory func(ctx context.Context, dimensions int) (VectorStore, error)

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface used by the chain to fetch relevant
// context for a given query. It combines embedding and vector search.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the top-k most relevant documents for the given query.
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}
