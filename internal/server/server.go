// Package server implements the HTTP server that exposes the PDF chat flow
// via a JSON API and serves the embedded web UI.
// The server is started by the `pdfchat serve` CLI command.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/pdfchat-go/internal/config"
	"github.com/54b3r/pdfchat-go/internal/errkind"
	"github.com/54b3r/pdfchat-go/internal/logging"
	"github.com/54b3r/pdfchat-go/internal/store"
)

// missingKeyWarning is shown instead of an answer when no chat key was sent.
const missingKeyWarning = "Please enter the chat model API key"

// apiKeyHeader carries the user's chat model key.
const apiKeyHeader = "X-Chat-API-Key"

//go:embed ui/index.html
var indexHTML []byte

// New constructs a Server from the provided dependencies and config.
func New(deps Dependencies, cfg *Config) (*Server, error) {
	switch {
	case deps.Indexer == nil:
		return nil, errors.New("server: indexer must not be nil")
	case deps.Chain == nil:
		return nil, errors.New("server: chain must not be nil")
	case deps.Models == nil:
		return nil, errors.New("server: model factory must not be nil")
	case deps.Sessions == nil:
		return nil, errors.New("server: session store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 2 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		// Indexing a large upload embeds every chunk before responding.
		cfg.WriteTimeout = 10 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 64 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		deps:    deps,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}
	s.indexes = newIndexRegistry(s.log, s.metrics.activeIndexes)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, s.instrument(s.routes())),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// routes builds the request multiplexer.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /api/documents", s.handleDocumentsUpload)
	mux.HandleFunc("GET /api/documents", s.handleDocuments)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/sessions/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))
	return mux
}

// Handler returns the fully wrapped HTTP handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown and drops every
// client index.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("pdfchat server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.closeIndexes()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		s.closeIndexes()
		if err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

func (s *Server) closeIndexes() {
	if err := s.indexes.Close(); err != nil {
		s.log.Warn("server: failed to drop indexes", slog.Any("error", err))
	}
}

// handleIndex serves the single-page UI.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

// handleChat handles POST /api/chat. A request without a chat key gets a
// warning and triggers no model call.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx)
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.chatDone(start, string(errkind.Invalid))
		writeError(ctx, w, errkind.Wrap(errkind.Invalid, "", fmt.Errorf("invalid request body: %w", err)))
		return
	}

	apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader))
	if apiKey == "" {
		apiKey = strings.TrimSpace(req.APIKey)
	}
	if apiKey == "" {
		s.chatDone(start, "no_key")
		writeJSON(ctx, w, http.StatusOK, warningResponse{Warning: missingKeyWarning})
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = config.DefaultSessionID
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		s.chatDone(start, string(errkind.Invalid))
		writeError(ctx, w, errkind.New(errkind.Invalid, "", "question is required"))
		return
	}

	idx := s.indexes.Get(clientID(w, r))
	if idx == nil {
		s.chatDone(start, string(errkind.NotReady))
		writeError(ctx, w, errkind.New(errkind.NotReady, "", "upload PDF files before asking a question"))
		return
	}

	chatModel, err := s.deps.Models.New(ctx, apiKey)
	if err != nil {
		s.chatDone(start, string(errkind.KindOf(err)))
		writeError(ctx, w, err)
		return
	}

	res, err := s.deps.Chain.Ask(ctx, chatModel, idx, sessionID, question)
	if err != nil {
		s.chatDone(start, string(errkind.KindOf(err)))
		writeError(ctx, w, err)
		return
	}

	html, err := renderMarkdown(res.Answer)
	if err != nil {
		log.Warn("server: markdown render failed, falling back to escaped text", slog.Any("error", err))
	}

	s.chatDone(start, "ok")
	writeJSON(ctx, w, http.StatusOK, chatResponse{
		Answer:            res.Answer,
		AnswerHTML:        html,
		RewrittenQuestion: res.RewrittenQuestion,
		SessionID:         sessionID,
		Sources:           sourceRefs(res.Sources),
	})
}

func (s *Server) chatDone(start time.Time, outcome string) {
	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// handleHistory handles GET /api/sessions/{id}/history. Unknown sessions are
// created on the spot and return an empty list.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(ctx, w, errkind.New(errkind.Invalid, "", "session id is required"))
		return
	}

	msgs, err := s.deps.Sessions.History(ctx, id)
	if err != nil {
		writeError(ctx, w, errkind.Wrap(errkind.ServiceUnavailable, "server: history", err))
		return
	}
	writeJSON(ctx, w, http.StatusOK, historyResponse{SessionID: id, Messages: msgs})
}

// handleSessions handles GET /api/sessions.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessions, err := s.deps.Sessions.Sessions(ctx)
	if err != nil {
		writeError(ctx, w, errkind.Wrap(errkind.ServiceUnavailable, "server: sessions", err))
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	writeJSON(ctx, w, http.StatusOK, sessionsResponse{Sessions: sessions})
}
