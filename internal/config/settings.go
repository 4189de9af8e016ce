package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/caarlos0/env/v10"
)

// DefaultSessionID is the session id the UI and CLI start with.
const DefaultSessionID = "Session 1"

// Settings is the typed view of the environment after [Load] has layered the
// YAML file underneath it. Zero values on optional fields mean "use the
// backend's default" and are resolved by the consuming package.
type Settings struct {
	Model     ModelSettings
	Embedding EmbeddingSettings
	Index     IndexSettings
	Prompts   PromptSettings
	Qdrant    QdrantSettings
	Server    ServerSettings
	History   HistorySettings
	Tracing   TracingSettings
}

// ModelSettings configures the chat model. The key itself arrives per request.
type ModelSettings struct {
	Provider        string  `env:"MODEL_PROVIDER" envDefault:"groq"`
	Name            string  `env:"MODEL_NAME"`
	BaseURL         string  `env:"MODEL_BASE_URL"`
	MaxTokens       int     `env:"MODEL_MAX_TOKENS" envDefault:"1024"`
	Temperature     float32 `env:"MODEL_TEMPERATURE" envDefault:"0.2"`
	AzureAPIVersion string  `env:"AZURE_OPENAI_API_VERSION" envDefault:"2024-06-01"`
	// APIKey is only consulted by the CLI as a fallback for --api-key.
	APIKey string `env:"CHAT_API_KEY"`
}

// EmbeddingSettings configures the embedding backend.
type EmbeddingSettings struct {
	Provider   string `env:"EMBEDDING_PROVIDER" envDefault:"huggingface"`
	Model      string `env:"EMBEDDING_MODEL"`
	Endpoint   string `env:"EMBEDDING_ENDPOINT"`
	APIKey     string `env:"EMBEDDING_API_KEY"`
	Dimensions int    `env:"EMBEDDING_DIMENSIONS"`
	APIVersion string `env:"EMBEDDING_API_VERSION" envDefault:"2024-06-01"`
	HFToken    string `env:"HF_TOKEN"`
}

// IndexSettings configures chunking, retrieval and prompt budgets.
type IndexSettings struct {
	Backend          string `env:"INDEX_BACKEND" envDefault:"chromem"`
	ChunkSize        int    `env:"CHUNK_SIZE" envDefault:"5000"`
	ChunkOverlap     int    `env:"CHUNK_OVERLAP" envDefault:"500"`
	TopK             int    `env:"RETRIEVAL_TOP_K" envDefault:"4"`
	Distance         string `env:"RETRIEVAL_DISTANCE" envDefault:"cosine"`
	EmbedBatchSize   int    `env:"EMBED_BATCH_SIZE" envDefault:"32"`
	MaxContextTokens int    `env:"MAX_CONTEXT_TOKENS" envDefault:"12000"`
	MaxContextChars  int    `env:"MAX_CONTEXT_CHARS" envDefault:"24000"`
}

// PromptSettings overrides the built-in instructions when non-empty. Prompts
// are format strings. The answer prompt must reference {context}; write
// literal braces as {{ and }}.
type PromptSettings struct {
	Rewrite string `env:"PROMPT_REWRITE"`
	Answer  string `env:"PROMPT_ANSWER"`
}

// QdrantSettings configures the Qdrant connection used when INDEX_BACKEND=qdrant.
type QdrantSettings struct {
	Host             string `env:"QDRANT_HOST" envDefault:"localhost"`
	Port             int    `env:"QDRANT_PORT" envDefault:"6334"`
	APIKey           string `env:"QDRANT_API_KEY"`
	TLS              bool   `env:"QDRANT_TLS"`
	CollectionPrefix string `env:"QDRANT_COLLECTION_PREFIX" envDefault:"pdfchat"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host        string `env:"PDFCHAT_HOST" envDefault:"127.0.0.1"`
	Port        int    `env:"PDFCHAT_PORT" envDefault:"8080"`
	MaxUploadMB int    `env:"PDFCHAT_MAX_UPLOAD_MB" envDefault:"64"`
}

// HistorySettings configures the session history database.
type HistorySettings struct {
	DBPath string `env:"PDFCHAT_HISTORY_DB" envDefault:":memory:"`
}

// TracingSettings configures opt-in Langfuse tracing.
type TracingSettings struct {
	PublicKey string `env:"LANGFUSE_PUBLIC_KEY"`
	SecretKey string `env:"LANGFUSE_SECRET_KEY"`
	Host      string `env:"LANGFUSE_HOST" envDefault:"https://cloud.langfuse.com"`
}

// Enabled reports whether both Langfuse keys are present.
func (t TracingSettings) Enabled() bool {
	return t.PublicKey != "" && t.SecretKey != ""
}

// ErrInvalidSettings is wrapped by every error returned from [Settings.Validate].
var ErrInvalidSettings = errors.New("config: invalid settings")

var (
	indexBackends = []string{"chromem", "qdrant"}
	distances     = []string{"cosine", "dot", "euclid", "manhattan"}
)

// LoadSettings parses the process environment into [Settings] and validates it.
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment: %w", err)
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) normalize() {
	s.Model.Provider = strings.ToLower(strings.TrimSpace(s.Model.Provider))
	s.Embedding.Provider = strings.ToLower(strings.TrimSpace(s.Embedding.Provider))
	s.Index.Backend = strings.ToLower(strings.TrimSpace(s.Index.Backend))
	s.Index.Distance = strings.ToLower(strings.TrimSpace(s.Index.Distance))
}

// Validate checks cross-field constraints that env tags cannot express.
func (s *Settings) Validate() error {
	var errs []error

	if s.Index.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", s.Index.ChunkSize))
	}
	if s.Index.ChunkOverlap < 0 || s.Index.ChunkOverlap >= s.Index.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d with CHUNK_SIZE %d",
			s.Index.ChunkOverlap, s.Index.ChunkSize))
	}
	if s.Index.TopK <= 0 {
		errs = append(errs, fmt.Errorf("RETRIEVAL_TOP_K must be positive, got %d", s.Index.TopK))
	}
	if s.Index.EmbedBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("EMBED_BATCH_SIZE must be positive, got %d", s.Index.EmbedBatchSize))
	}
	if !slices.Contains(indexBackends, s.Index.Backend) {
		errs = append(errs, fmt.Errorf("INDEX_BACKEND %q is not one of %v", s.Index.Backend, indexBackends))
	}
	if !slices.Contains(distances, s.Index.Distance) {
		errs = append(errs, fmt.Errorf("RETRIEVAL_DISTANCE %q is not one of %v", s.Index.Distance, distances))
	} else if s.Index.Backend == "chromem" && s.Index.Distance != "cosine" {
		errs = append(errs, fmt.Errorf("RETRIEVAL_DISTANCE %q requires INDEX_BACKEND=qdrant", s.Index.Distance))
	}
	if s.Prompts.Answer != "" && !strings.Contains(s.Prompts.Answer, "{context}") {
		errs = append(errs, errors.New("PROMPT_ANSWER must contain the {context} placeholder"))
	}
	if s.Server.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("PDFCHAT_MAX_UPLOAD_MB must be positive, got %d", s.Server.MaxUploadMB))
	}
	if s.Model.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("MODEL_MAX_TOKENS must not be negative, got %d", s.Model.MaxTokens))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
}
