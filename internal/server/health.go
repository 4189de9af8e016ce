package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/54b3r/pdfchat-go/internal/logging"
)

// probeTimeout bounds each dependency probe so /api/ready answers quickly even
// when a dependency hangs.
const probeTimeout = 5 * time.Second

// Pinger reports whether one backing dependency (the session database, the
// Qdrant server) is reachable. Implementations must be safe for concurrent use.
type Pinger interface {
	// Ping returns nil when the dependency is healthy.
	Ping(ctx context.Context) error
	// Name labels the dependency in readiness responses.
	Name() string
}

// readyCheck is the result of probing one dependency.
type readyCheck struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// readyResponse is the body of GET /api/ready. Indexes counts the document
// indexes currently held for browser clients; it is informational and never
// affects readiness.
type readyResponse struct {
	Ready   bool         `json:"ready"`
	Indexes int          `json:"indexes"`
	Checks  []readyCheck `json:"checks"`
}

// handleHealth is the liveness probe: it answers 200 as long as the process
// can serve HTTP.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady probes every registered Pinger in order and answers 200 when
// all succeed, 503 otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := readyResponse{Ready: true, Indexes: s.indexes.Len(), Checks: make([]readyCheck, 0, len(s.pingers))}
	for _, p := range s.pingers {
		check := probe(r.Context(), p)
		if !check.OK {
			resp.Ready = false
		}
		resp.Checks = append(resp.Checks, check)
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(r.Context(), w, status, resp)
}

func probe(ctx context.Context, p Pinger) readyCheck {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	check := readyCheck{Name: p.Name(), OK: err == nil, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		check.Error = err.Error()
		logging.FromContext(ctx).Warn("readiness probe failed",
			slog.String("dependency", p.Name()),
			slog.Any("error", err),
		)
	}
	return check
}
