package rag

import (
	"sync"
	"time"
)

// Index is one built set of uploads: the vector store holding its chunks and
// the retriever over it. An index is immutable once built; re-uploading
// produces a new one.
type Index struct {
	// ID identifies the index in logs.
	ID string
	// Files lists the upload names in upload order.
	Files []string
	// Pages is the number of page documents ingested.
	Pages int
	// Chunks is the number of chunks stored.
	Chunks int
	// BuiltAt is when indexing finished.
	BuiltAt time.Time

	store     VectorStore
	retriever Retriever
	closeOnce sync.Once
	closeErr  error
}

// NewIndex binds a populated store and its retriever into an Index.
func NewIndex(id string, files []string, pages, chunks int, store VectorStore, retriever Retriever) *Index {
	return &Index{
		ID:        id,
		Files:     files,
		Pages:     pages,
		Chunks:    chunks,
		BuiltAt:   time.Now().UTC(),
		store:     store,
		retriever: retriever,
	}
}

// Retriever returns the retriever over this index's chunks.
func (i *Index) Retriever() Retriever {
	return i.retriever
}

// Close releases the underlying store. It is safe to call more than once.
func (i *Index) Close() error {
	i.closeOnce.Do(func() {
		if i.store != nil {
			i.closeErr = i.store.Close()
		}
	})
	return i.closeErr
}
