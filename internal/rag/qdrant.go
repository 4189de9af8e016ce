package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadContent is the payload key holding chunk text; every other payload
// key is copied back into Document.Metadata.
const payloadContent = "content"

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// CollectionPrefix names per-index collections as <prefix>-<uuid>.
	CollectionPrefix string

	// Distance is cosine, dot, euclid or manhattan (default: cosine).
	Distance string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantBackend owns one gRPC client and hands out a fresh collection per index.
type QdrantBackend struct {
	client   *qdrant.Client
	cfg      QdrantConfig
	distance qdrant.Distance
}

// NewQdrantBackend connects to Qdrant. Collections are created per index by
// [QdrantBackend.NewStore], sized to the embeddings being stored.
func NewQdrantBackend(cfg QdrantConfig) (*QdrantBackend, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.CollectionPrefix == "" {
		cfg.CollectionPrefix = "pdfchat"
	}
	dist, err := ParseDistance(cfg.Distance)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantBackend{client: client, cfg: cfg, distance: dist}, nil
}

// ParseDistance maps a metric name to its Qdrant enum. Empty means cosine.
func ParseDistance(name string) (qdrant.Distance, error) {
	switch strings.ToLower(name) {
	case "", "cosine":
		return qdrant.Distance_Cosine, nil
	case "dot":
		return qdrant.Distance_Dot, nil
	case "euclid":
		return qdrant.Distance_Euclid, nil
	case "manhattan":
		return qdrant.Distance_Manhattan, nil
	default:
		return 0, fmt.Errorf("qdrant: unknown distance %q", name)
	}
}

// Factory returns a StoreFactory backed by b.
func (b *QdrantBackend) Factory() StoreFactory {
	return func(ctx context.Context, dimensions int) (VectorStore, error) {
		return b.NewStore(ctx, dimensions)
	}
}

// NewStore creates a new, empty collection for vectors of the given size and
// returns a store bound to it.
func (b *QdrantBackend) NewStore(ctx context.Context, dimensions int) (*QdrantStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("qdrant: vector size must be positive, got %d", dimensions)
	}
	name := b.cfg.CollectionPrefix + "-" + uuid.NewString()

	err := b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: b.distance,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create collection %q: %w", name, err)
	}

	return &QdrantStore{client: b.client, collection: name}, nil
}

// Ping checks that Qdrant answers health checks.
func (b *QdrantBackend) Ping(ctx context.Context) error {
	if _, err := b.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying gRPC connection. Stores created by b must be
// closed first.
func (b *QdrantBackend) Close() error {
	return b.client.Close()
}

// QdrantStore implements VectorStore on a single Qdrant collection.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// Upsert stores docs with their embeddings. Point ids are the document ids,
// which must be UUIDs (see [ChunkID]).
func (s *QdrantStore) Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("qdrant: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		payload := map[string]any{
			payloadContent: doc.Content,
			MetaSource:     doc.Source,
		}
		for k, v := range doc.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(doc.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Search returns the top-k results under the collection's distance.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		doc := Document{
			ID:       r.GetId().GetUuid(),
			Score:    r.GetScore(),
			Metadata: make(map[string]string),
		}
		for k, v := range r.GetPayload() {
			switch k {
			case payloadContent:
				doc.Content = v.GetStringValue()
			default:
				doc.Metadata[k] = v.GetStringValue()
			}
		}
		doc.Source = doc.Metadata[MetaSource]
		docs = append(docs, doc)
	}
	return docs, nil
}

// Close drops the collection. The shared client stays open.
func (s *QdrantStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("qdrant: failed to drop collection %q: %w", s.collection, err)
	}
	return nil
}
