package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/pdfchat-go/internal/config"
	"github.com/54b3r/pdfchat-go/internal/errkind"
)

// Default endpoints and models per backend.
const (
	defaultGroqBaseURL   = "https://api.groq.com/openai/v1"
	defaultOllamaBaseURL = "http://localhost:11434"

	defaultGroqModel   = "gemma2-9b-it"
	defaultOpenAIModel = "gpt-4o-mini"
	defaultOllamaModel = "llama3"
	defaultGeminiModel = "gemini-1.5-flash"
)

// SettingsFactory builds chat models from process settings plus a per-call key.
type SettingsFactory struct {
	base Config
}

var _ Factory = (*SettingsFactory)(nil)

// NewFactory resolves backend defaults from s and validates everything that
// does not depend on the API key, so misconfiguration surfaces at startup.
func NewFactory(s config.ModelSettings) (*SettingsFactory, error) {
	base := Config{
		Backend:         Backend(s.Provider),
		Model:           s.Name,
		BaseURL:         s.BaseURL,
		AzureAPIVersion: s.AzureAPIVersion,
		MaxTokens:       s.MaxTokens,
		Temperature:     s.Temperature,
	}
	base.applyDefaults()

	probe := base
	probe.APIKey = "probe"
	if err := probe.Validate(); err != nil {
		return nil, errkind.Wrap(errkind.Config, "", err)
	}
	return &SettingsFactory{base: base}, nil
}

// Config returns the resolved configuration without a key.
func (f *SettingsFactory) Config() Config {
	return f.base
}

// New constructs a chat model authenticated with apiKey.
func (f *SettingsFactory) New(ctx context.Context, apiKey string) (model.BaseChatModel, error) {
	cfg := f.base
	cfg.APIKey = apiKey
	return New(ctx, &cfg)
}

// applyDefaults fills the model name and endpoint a backend needs when unset.
func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendGroq
	}
	switch c.Backend {
	case BackendGroq:
		if c.BaseURL == "" {
			c.BaseURL = defaultGroqBaseURL
		}
		if c.Model == "" {
			c.Model = defaultGroqModel
		}
	case BackendOpenAI:
		if c.Model == "" {
			c.Model = defaultOpenAIModel
		}
	case BackendOllama:
		if c.BaseURL == "" {
			c.BaseURL = defaultOllamaBaseURL
		}
		if c.Model == "" {
			c.Model = defaultOllamaModel
		}
	case BackendGemini:
		if c.Model == "" {
			c.Model = defaultGeminiModel
		}
	}
}

// Validate checks that c has what its backend needs.
func (c *Config) Validate() error {
	var errs []error
	needsKey := c.Backend != BackendOllama

	switch c.Backend {
	case BackendGroq, BackendOpenAI, BackendOllama, BackendGemini:
	case BackendAzure:
		if c.BaseURL == "" {
			errs = append(errs, errors.New("MODEL_BASE_URL (Azure endpoint) is required for azure"))
		}
		if c.AzureAPIVersion == "" {
			errs = append(errs, errors.New("AZURE_OPENAI_API_VERSION is required for azure"))
		}
	case BackendArk:
	default:
		return fmt.Errorf("provider: unknown backend %q: valid values are groq, openai, azure, ollama, ark, gemini", c.Backend)
	}

	if c.Model == "" {
		errs = append(errs, fmt.Errorf("MODEL_NAME is required for %s", c.Backend))
	}
	if needsKey && c.APIKey == "" {
		errs = append(errs, fmt.Errorf("an API key is required for %s", c.Backend))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %.2f out of range [0, 2]", c.Temperature))
	}

	if len(errs) > 0 {
		return fmt.Errorf("provider: %w", errors.Join(errs...))
	}
	return nil
}

// New constructs a chat model from an explicit Config, delegating to the
// backend constructor.
func New(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		if cfg.APIKey == "" {
			return nil, errkind.Wrap(errkind.Credential, "", err)
		}
		return nil, errkind.Wrap(errkind.Config, "", err)
	}

	var (
		m   model.BaseChatModel
		err error
	)
	switch cfg.Backend {
	case BackendGroq, BackendOpenAI:
		m, err = newOpenAICompatible(ctx, cfg)
	case BackendAzure:
		m, err = newAzure(ctx, cfg)
	case BackendOllama:
		m, err = newOllama(ctx, cfg)
	case BackendArk:
		m, err = newArk(ctx, cfg)
	case BackendGemini:
		m, err = newGemini(ctx, cfg)
	}
	if err != nil {
		return nil, errkind.Wrap(errkind.Config, "provider: "+string(cfg.Backend), err)
	}
	return m, nil
}
