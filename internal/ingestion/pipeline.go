// Package ingestion turns uploaded PDFs into a searchable index: it parses
// each upload into page documents, splits pages into overlapping chunks,
// embeds the chunks in batches and writes them into a fresh vector store.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/pdfchat-go/internal/errkind"
	"github.com/54b3r/pdfchat-go/internal/logging"
	"github.com/54b3r/pdfchat-go/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per chunk. Defaults to 5000.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	// Must be smaller than ChunkSize.
	ChunkOverlap int

	// EmbedBatchSize is the number of chunks sent per embedding call. Defaults to 32.
	EmbedBatchSize int

	// TopK is the retriever's default result count. Defaults to 4.
	TopK int
}

// Pipeline orchestrates the parse → split → embed → store flow. Each build
// writes into a store of its own, so indexes never share chunks.
type Pipeline struct {
	embedder rag.Embedder
	factory  rag.StoreFactory
	splitter *Splitter
	cfg      Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, factory rag.StoreFactory, cfg Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, errors.New("ingestion: embedder must not be nil")
	}
	if factory == nil {
		return nil, errors.New("ingestion: store factory must not be nil")
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 5000
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 32
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}

	splitter, err := NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, errkind.Wrap(errkind.Config, "", err)
	}

	return &Pipeline{
		embedder: embedder,
		factory:  factory,
		splitter: splitter,
		cfg:      cfg,
	}, nil
}

// BuildFromPDFs parses uploads and builds an index over them.
func (p *Pipeline) BuildFromPDFs(ctx context.Context, uploads []Upload) (*rag.Index, error) {
	docs, err := LoadPDFs(ctx, uploads)
	if err != nil {
		return nil, err
	}
	return p.Build(ctx, docs)
}

// Build splits, embeds and stores docs in a brand-new vector store and
// returns the resulting index. The caller owns the index and must Close it.
func (p *Pipeline) Build(ctx context.Context, docs []rag.Document) (*rag.Index, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	chunks, err := p.splitter.SplitDocuments(docs)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, errkind.New(errkind.Parse, "ingestion",
			"no extractable text in %d page(s); scanned PDFs need OCR first", len(docs))
	}

	embeddings, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	dims, err := vectorSize(embeddings)
	if err != nil {
		return nil, err
	}
	store, err := p.factory(ctx, dims)
	if err != nil {
		return nil, errkind.Wrap(errkind.ServiceUnavailable, "ingestion: create vector store", err)
	}
	if err := store.Upsert(ctx, chunks, embeddings); err != nil {
		_ = store.Close()
		return nil, errkind.Wrap(errkind.ServiceUnavailable, "ingestion: store chunks", err)
	}

	retriever, err := rag.NewRetriever(p.embedder, store, p.cfg.TopK)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ingestion: %w", err)
	}

	files := sourceFiles(docs)
	idx := rag.NewIndex(uuid.NewString(), files, len(docs), len(chunks), store, retriever)

	log.Info("ingestion: index built",
		slog.String("index_id", idx.ID),
		slog.Int("files", len(files)),
		slog.Int("pages", len(docs)),
		slog.Int("chunks", len(chunks)),
		slog.Duration("duration", time.Since(start)),
	)
	return idx, nil
}

// embedChunks embeds chunk contents in batches of cfg.EmbedBatchSize.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []rag.Document) ([][]float32, error) {
	log := logging.FromContext(ctx)

	out := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += p.cfg.EmbedBatchSize {
		end := min(start+p.cfg.EmbedBatchSize, len(chunks))

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}

		vecs, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, errkind.Wrap(errkind.ServiceUnavailable, "ingestion: embed chunks", err)
		}
		if len(vecs) != len(texts) {
			return nil, errkind.New(errkind.ServiceUnavailable, "ingestion",
				"embedder returned %d vectors for %d chunks", len(vecs), len(texts))
		}
		out = append(out, vecs...)

		log.Debug("ingestion: embedded batch", slog.Int("done", end), slog.Int("total", len(chunks)))
	}
	return out, nil
}

// vectorSize returns the common length of vecs. The store is sized from what
// the embedder actually produced, not from configuration.
func vectorSize(vecs [][]float32) (int, error) {
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return 0, errkind.New(errkind.ServiceUnavailable, "ingestion", "embedder returned empty vectors")
	}
	dims := len(vecs[0])
	for i, v := range vecs {
		if len(v) != dims {
			return 0, errkind.New(errkind.ServiceUnavailable, "ingestion",
				"embedder returned vectors of mixed size: %d at 0, %d at %d", dims, len(v), i)
		}
	}
	return dims, nil
}

// sourceFiles lists distinct sources in first-seen order.
func sourceFiles(docs []rag.Document) []string {
	seen := make(map[string]bool)
	var files []string
	for _, d := range docs {
		if !seen[d.Source] {
			seen[d.Source] = true
			files = append(files, d.Source)
		}
	}
	return files
}
