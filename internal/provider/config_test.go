package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/54b3r/pdfchat-go/internal/config"
	"github.com/54b3r/pdfchat-go/internal/errkind"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		// ── Groq ──────────────────────────────────────────────────────────────
		{
			name: "groq/valid",
			cfg:  Config{Backend: BackendGroq, Model: "gemma2-9b-it", APIKey: "gsk_x"},
		},
		{
			name:    "groq/missing key",
			cfg:     Config{Backend: BackendGroq, Model: "gemma2-9b-it"},
			wantErr: "an API key is required for groq",
		},
		// ── Ollama ────────────────────────────────────────────────────────────
		{
			name: "ollama/no key needed",
			cfg:  Config{Backend: BackendOllama, Model: "llama3"},
		},
		// ── Azure ─────────────────────────────────────────────────────────────
		{
			name: "azure/valid",
			cfg: Config{
				Backend: BackendAzure, Model: "gpt-4o", APIKey: "k",
				BaseURL: "https://example.openai.azure.com", AzureAPIVersion: "2024-06-01",
			},
		},
		{
			name:    "azure/missing endpoint",
			cfg:     Config{Backend: BackendAzure, Model: "gpt-4o", APIKey: "k", AzureAPIVersion: "2024-06-01"},
			wantErr: "MODEL_BASE_URL",
		},
		{
			name:    "azure/missing api version",
			cfg:     Config{Backend: BackendAzure, Model: "gpt-4o", APIKey: "k", BaseURL: "https://x"},
			wantErr: "AZURE_OPENAI_API_VERSION",
		},
		// ── Ark ───────────────────────────────────────────────────────────────
		{
			name:    "ark/missing model",
			cfg:     Config{Backend: BackendArk, APIKey: "k"},
			wantErr: "MODEL_NAME is required for ark",
		},
		// ── General ───────────────────────────────────────────────────────────
		{
			name:    "unknown backend",
			cfg:     Config{Backend: "watsonx", Model: "m", APIKey: "k"},
			wantErr: "unknown backend",
		},
		{
			name:    "temperature out of range",
			cfg:     Config{Backend: BackendOpenAI, Model: "gpt-4o-mini", APIKey: "k", Temperature: 3},
			wantErr: "temperature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backend   Backend
		wantModel string
		wantURL   string
	}{
		{"", defaultGroqModel, defaultGroqBaseURL},
		{BackendGroq, defaultGroqModel, defaultGroqBaseURL},
		{BackendOpenAI, defaultOpenAIModel, ""},
		{BackendOllama, defaultOllamaModel, defaultOllamaBaseURL},
		{BackendGemini, defaultGeminiModel, ""},
		{BackendArk, "", ""},
	}
	for _, tt := range tests {
		c := Config{Backend: tt.backend}
		c.applyDefaults()
		if c.Model != tt.wantModel || c.BaseURL != tt.wantURL {
			t.Errorf("%q: got model=%q url=%q, want model=%q url=%q",
				tt.backend, c.Model, c.BaseURL, tt.wantModel, tt.wantURL)
		}
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	c := Config{Backend: BackendGroq, Model: "llama-3.1-8b-instant", BaseURL: "http://proxy"}
	c.applyDefaults()
	if c.Model != "llama-3.1-8b-instant" || c.BaseURL != "http://proxy" {
		t.Errorf("explicit values overwritten: %+v", c)
	}
}

func TestNewFactory(t *testing.T) {
	t.Parallel()

	f, err := NewFactory(config.ModelSettings{Provider: "groq", Temperature: 0.2, MaxTokens: 512})
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	cfg := f.Config()
	if cfg.Model != defaultGroqModel || cfg.BaseURL != defaultGroqBaseURL {
		t.Errorf("defaults not resolved: %+v", cfg)
	}
	if cfg.APIKey != "" {
		t.Error("factory config must not carry a key")
	}

	_, err = NewFactory(config.ModelSettings{Provider: "azure", Name: "gpt-4o"})
	if !errkind.Is(err, errkind.Config) {
		t.Errorf("azure without endpoint: expected config error, got %v", err)
	}
}

func TestFactoryNew_MissingKeyIsCredentialError(t *testing.T) {
	t.Parallel()

	f, err := NewFactory(config.ModelSettings{Provider: "groq"})
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	if _, err := f.New(context.Background(), ""); !errkind.Is(err, errkind.Credential) {
		t.Errorf("expected credential error, got %v", err)
	}
}

func TestFactoryNew_BuildsGroqModel(t *testing.T) {
	t.Parallel()

	f, err := NewFactory(config.ModelSettings{Provider: "groq"})
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	m, err := f.New(context.Background(), "gsk_test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m == nil {
		t.Fatal("expected a model")
	}
}

func TestPositive(t *testing.T) {
	t.Parallel()

	zero, n := 0, 256
	if positive(&zero) != nil {
		t.Error("zero should map to nil")
	}
	if p := positive(&n); p == nil || *p != 256 {
		t.Errorf("positive(256) = %v", p)
	}
}
