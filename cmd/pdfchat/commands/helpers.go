package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/54b3r/pdfchat-go/internal/chain"
	"github.com/54b3r/pdfchat-go/internal/config"
	"github.com/54b3r/pdfchat-go/internal/embedder"
	"github.com/54b3r/pdfchat-go/internal/ingestion"
	"github.com/54b3r/pdfchat-go/internal/provider"
	"github.com/54b3r/pdfchat-go/internal/rag"
	"github.com/54b3r/pdfchat-go/internal/server"
	"github.com/54b3r/pdfchat-go/internal/store"
	"github.com/54b3r/pdfchat-go/internal/tracing"
)

// runtime is everything a command needs to index PDFs and answer questions.
type runtime struct {
	pipeline *ingestion.Pipeline
	chain    *chain.Chain
	models   *provider.SettingsFactory
	sessions *store.SQLiteStore
	pingers  []server.Pinger
	closers  []func() error
}

// buildRuntime wires the embedder, vector store backend, ingestion pipeline,
// session store, chain and model factory from s. Call Close when done.
func buildRuntime(ctx context.Context, log *slog.Logger, s *config.Settings) (_ *runtime, err error) {
	rt := &runtime{}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	flush, enabled := tracing.Setup(s.Tracing)
	rt.closers = append(rt.closers, func() error { flush(); return nil })
	if enabled {
		log.Info("langfuse tracing enabled", slog.String("host", s.Tracing.Host))
	} else {
		log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY or LANGFUSE_SECRET_KEY not set"))
	}

	if err := embedder.ValidateSettings(log, s.Embedding); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromSettings(s.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised",
		slog.String("provider", s.Embedding.Provider),
		slog.String("model", embedder.ModelName(s.Embedding)),
	)

	factory, err := rt.storeFactory(ctx, log, s)
	if err != nil {
		return nil, err
	}

	rt.pipeline, err = ingestion.NewPipeline(emb, factory, ingestion.Config{
		ChunkSize:      s.Index.ChunkSize,
		ChunkOverlap:   s.Index.ChunkOverlap,
		EmbedBatchSize: s.Index.EmbedBatchSize,
		TopK:           s.Index.TopK,
	})
	if err != nil {
		return nil, err
	}

	rt.sessions, err = store.Open(s.History.DBPath)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rt.sessions.Close)
	rt.pingers = append(rt.pingers, server.NewStorePinger(rt.sessions))
	log.Info("history: store opened", slog.String("path", s.History.DBPath))

	rt.chain, err = chain.New(rt.sessions, chain.Config{
		RewritePrompt:    s.Prompts.Rewrite,
		AnswerPrompt:     s.Prompts.Answer,
		TopK:             s.Index.TopK,
		MaxContextTokens: s.Index.MaxContextTokens,
		MaxContextChars:  s.Index.MaxContextChars,
	})
	if err != nil {
		return nil, err
	}

	rt.models, err = provider.NewFactory(s.Model)
	if err != nil {
		return nil, err
	}
	mc := rt.models.Config()
	log.Info("provider configured",
		slog.String("provider", string(mc.Backend)),
		slog.String("model", mc.Model),
	)

	return rt, nil
}

// storeFactory selects the vector store backend named by INDEX_BACKEND.
func (rt *runtime) storeFactory(ctx context.Context, log *slog.Logger, s *config.Settings) (rag.StoreFactory, error) {
	switch s.Index.Backend {
	case "qdrant":
		backend, err := rag.NewQdrantBackend(rag.QdrantConfig{
			Host:             s.Qdrant.Host,
			Port:             s.Qdrant.Port,
			CollectionPrefix: s.Qdrant.CollectionPrefix,
			Distance:         s.Index.Distance,
			APIKey:           s.Qdrant.APIKey,
			UseTLS:           s.Qdrant.TLS,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", s.Qdrant.Host, s.Qdrant.Port, err)
		}
		rt.closers = append(rt.closers, backend.Close)
		rt.pingers = append(rt.pingers, server.NewQdrantPinger(backend))
		if err := backend.Ping(ctx); err != nil {
			log.Warn("qdrant: not reachable yet, uploads will fail until it is", slog.Any("error", err))
		}
		log.Info("index backend: qdrant",
			slog.String("host", s.Qdrant.Host),
			slog.Int("port", s.Qdrant.Port),
			slog.String("distance", s.Index.Distance),
		)
		return backend.Factory(), nil
	default:
		log.Info("index backend: chromem (in-memory)")
		return rag.NewChromemFactory(), nil
	}
}

// Close releases everything in reverse order of construction.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}
