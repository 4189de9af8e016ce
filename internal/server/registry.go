package server

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/pdfchat-go/internal/rag"
)

// indexRegistry maps client ids to their current index. An index that is
// replaced or dropped is closed, which releases its vector store.
type indexRegistry struct {
	mu       sync.Mutex
	byClient map[string]*rag.Index
	log      *slog.Logger
	active   prometheus.Gauge
}

func newIndexRegistry(log *slog.Logger, active prometheus.Gauge) *indexRegistry {
	return &indexRegistry{
		byClient: make(map[string]*rag.Index),
		log:      log,
		active:   active,
	}
}

// Get returns the client's index or nil.
func (r *indexRegistry) Get(client string) *rag.Index {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byClient[client]
}

// Replace installs idx for client and closes whatever it replaces.
func (r *indexRegistry) Replace(client string, idx *rag.Index) {
	r.mu.Lock()
	old := r.byClient[client]
	r.byClient[client] = idx
	r.active.Set(float64(len(r.byClient)))
	r.mu.Unlock()

	if old == nil {
		return
	}
	if err := old.Close(); err != nil {
		r.log.Warn("registry: failed to close replaced index",
			slog.String("index_id", old.ID),
			slog.Any("error", err),
		)
	}
}

// Len returns the number of clients holding an index.
func (r *indexRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byClient)
}

// Close drops every index.
func (r *indexRegistry) Close() error {
	r.mu.Lock()
	all := r.byClient
	r.byClient = make(map[string]*rag.Index)
	r.active.Set(0)
	r.mu.Unlock()

	var errs []error
	for _, idx := range all {
		errs = append(errs, idx.Close())
	}
	return errors.Join(errs...)
}
