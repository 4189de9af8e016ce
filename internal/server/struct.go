package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/pdfchat-go/internal/chain"
	"github.com/54b3r/pdfchat-go/internal/ingestion"
	"github.com/54b3r/pdfchat-go/internal/provider"
	"github.com/54b3r/pdfchat-go/internal/rag"
	"github.com/54b3r/pdfchat-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request,
	// uploads included.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It
	// covers indexing and both model calls.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// MaxUploadBytes caps the size of one POST /api/documents body.
	MaxUploadBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// MetricsRegistry receives the server's collectors. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Dependencies are the collaborators the handlers call into.
type Dependencies struct {
	// Indexer builds an index from uploaded PDFs.
	Indexer Indexer
	// Chain answers questions against an index.
	Chain Asker
	// Models builds a chat model from the caller's API key.
	Models provider.Factory
	// Sessions holds conversation history.
	Sessions store.SessionStore
}

// Indexer builds a fresh index from a batch of uploads.
// *ingestion.Pipeline satisfies it; tests inject a fake.
type Indexer interface {
	BuildFromPDFs(ctx context.Context, uploads []ingestion.Upload) (*rag.Index, error)
}

// Asker answers one question and records the exchange.
// *chain.Chain satisfies it; tests inject a fake.
type Asker interface {
	Ask(ctx context.Context, m model.BaseChatModel, idx *rag.Index, sessionID, question string) (*chain.Result, error)
}

// Server serves the web UI and the JSON API around the retrieval chain.
type Server struct {
	// deps are the handlers' collaborators.
	deps Dependencies
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
	// indexes maps browser clients to their current index.
	indexes *indexRegistry
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// SessionID selects the conversation history. Empty means the default session.
	SessionID string `json:"sessionId"`
	// Question is the user's question.
	Question string `json:"question"`
	// APIKey is the chat model key when the X-Chat-API-Key header is absent.
	APIKey string `json:"apiKey,omitempty"`
}

// chatResponse is the JSON response for a successful POST /api/chat.
type chatResponse struct {
	Answer            string      `json:"answer"`
	AnswerHTML        string      `json:"answerHtml"`
	RewrittenQuestion string      `json:"rewrittenQuestion"`
	SessionID         string      `json:"sessionId"`
	Sources           []sourceRef `json:"sources"`
}

// warningResponse tells the UI to prompt for input instead of failing.
type warningResponse struct {
	Warning string `json:"warning"`
}

// sourceRef identifies one chunk an answer was grounded on.
type sourceRef struct {
	// Source is the upload name.
	Source string `json:"source"`
	// Page is the 1-based page number.
	Page string `json:"page,omitempty"`
	// Score is the similarity reported by the vector store.
	Score float32 `json:"score"`
	// Excerpt is the start of the chunk text.
	Excerpt string `json:"excerpt"`
}

// documentsResponse is returned by both GET and POST /api/documents.
type documentsResponse struct {
	// Ready is true when the client has a usable index.
	Ready bool `json:"ready"`
	// Indexed is set on POST: true when this request built a new index.
	Indexed *bool `json:"indexed,omitempty"`
	// IndexID identifies the index in server logs.
	IndexID string `json:"indexId,omitempty"`
	// Files lists upload names in upload order.
	Files []string `json:"files,omitempty"`
	// Pages is the number of pages ingested.
	Pages int `json:"pages,omitempty"`
	// Chunks is the number of chunks stored.
	Chunks int `json:"chunks,omitempty"`
	// BuiltAt is when indexing finished.
	BuiltAt *time.Time `json:"builtAt,omitempty"`
}

// historyResponse is the JSON response for GET /api/sessions/{id}/history.
type historyResponse struct {
	SessionID string          `json:"sessionId"`
	Messages  []store.Message `json:"messages"`
}

// sessionsResponse is the JSON response for GET /api/sessions.
type sessionsResponse struct {
	Sessions []store.Session `json:"sessions"`
}

// errorBody is the JSON envelope for every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
