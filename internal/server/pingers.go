package server

import (
	"context"
	"fmt"

	"github.com/54b3r/pdfchat-go/internal/rag"
	"github.com/54b3r/pdfchat-go/internal/store"
)

// StorePinger probes the session history database.
type StorePinger struct {
	store store.SessionStore
}

// NewStorePinger constructs a StorePinger for s.
func NewStorePinger(s store.SessionStore) *StorePinger {
	return &StorePinger{store: s}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "sessions" }

// Ping runs a trivial query against the database.
func (p *StorePinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("session store unreachable: %w", err)
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	backend *rag.QdrantBackend
}

// NewQdrantPinger constructs a QdrantPinger for the given backend.
func NewQdrantPinger(backend *rag.QdrantBackend) *QdrantPinger {
	return &QdrantPinger{backend: backend}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if err := p.backend.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
