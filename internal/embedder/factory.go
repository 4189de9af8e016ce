package embedder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/54b3r/pdfchat-go/internal/config"
	"github.com/54b3r/pdfchat-go/internal/errkind"
	"github.com/54b3r/pdfchat-go/internal/rag"
)

// Default embedding models per backend.
const (
	DefaultHuggingFaceModel = "sentence-transformers/all-MiniLM-L6-v2"
	defaultOpenAIModel      = "text-embedding-3-small"
	defaultOllamaModel      = "nomic-embed-text"

	defaultOpenAIEndpoint = "https://api.openai.com/v1"
	defaultOllamaEndpoint = "http://localhost:11434"

	// all-MiniLM-L6-v2 produces 384-dimensional sentence vectors.
	defaultHuggingFaceDimensions = 384
	// nomic-embed-text; other Ollama models may differ, so override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// DefaultDimensions returns the vector size s is expected to produce, for
// start-up logging. Vector stores are sized from the embeddings themselves.
// EMBEDDING_DIMENSIONS always takes precedence.
func DefaultDimensions(s config.EmbeddingSettings) int {
	if s.Dimensions > 0 {
		return s.Dimensions
	}
	switch s.Provider {
	case "ollama":
		return defaultOllamaDimensions
	case "openai", "azure":
		return defaultOpenAIDimensions
	default:
		return defaultHuggingFaceDimensions
	}
}

// ModelName returns the embedding model s resolves to.
func ModelName(s config.EmbeddingSettings) string {
	if s.Model != "" {
		return s.Model
	}
	switch s.Provider {
	case "ollama":
		return defaultOllamaModel
	case "openai", "azure":
		return defaultOpenAIModel
	default:
		return DefaultHuggingFaceModel
	}
}

// NewFromSettings constructs a rag.Embedder bound to one fixed model.
// A missing credential is reported as an [errkind.Credential] error so the
// process can refuse to start before any upload is attempted.
func NewFromSettings(s config.EmbeddingSettings) (rag.Embedder, error) {
	model := ModelName(s)

	switch s.Provider {
	case "", "huggingface":
		if s.HFToken == "" {
			return nil, errkind.Wrap(errkind.Credential, "embedder",
				errors.New("huggingface requires HF_TOKEN"))
		}
		return NewHuggingFaceEmbedder(&HuggingFaceConfig{
			Endpoint: s.Endpoint,
			Model:    model,
			Token:    s.HFToken,
		}), nil

	case "openai":
		if s.APIKey == "" {
			return nil, errkind.Wrap(errkind.Credential, "embedder",
				errors.New("openai requires EMBEDDING_API_KEY"))
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    orDefault(s.Endpoint, defaultOpenAIEndpoint),
			APIKey:     s.APIKey,
			Model:      model,
			Dimensions: s.Dimensions,
		}), nil

	case "azure":
		if s.APIKey == "" {
			return nil, errkind.Wrap(errkind.Credential, "embedder",
				errors.New("azure requires EMBEDDING_API_KEY"))
		}
		if s.Endpoint == "" {
			return nil, errkind.Wrap(errkind.Config, "embedder",
				errors.New("azure requires EMBEDDING_ENDPOINT"))
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    strings.TrimRight(s.Endpoint, "/") + "/openai",
			APIKey:     s.APIKey,
			Model:      model,
			Dimensions: s.Dimensions,
			Azure:      true,
			APIVersion: s.APIVersion,
		}), nil

	case "ollama":
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  strings.TrimRight(orDefault(s.Endpoint, defaultOllamaEndpoint), "/"),
			Model: model,
		}), nil

	default:
		return nil, errkind.Wrap(errkind.Config, "embedder",
			fmt.Errorf("unknown backend %q: valid values are huggingface, openai, azure, ollama", s.Provider))
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
