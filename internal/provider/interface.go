// Package provider selects and constructs the chat model backend. Models are
// built per request because the API key belongs to the user, not the process.
// Supported backends: Groq (default), OpenAI, Azure OpenAI, Ollama,
// Volcengine Ark and Google Gemini.
package provider

import (
	"context"

	"github.com/cloudwego/eino/components/model"
)

// Backend enumerates the supported chat model providers.
type Backend string

const (
	// BackendGroq selects Groq's OpenAI-compatible endpoint.
	BackendGroq Backend = "groq"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendArk selects Volcengine Ark.
	BackendArk Backend = "ark"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// Config holds everything needed to construct one chat model.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Model is the model name, or the deployment name on Azure.
	Model string

	// BaseURL overrides the default API endpoint (required for Azure).
	BaseURL string

	// APIKey is the user's credential for the selected provider.
	// Ollama ignores it.
	APIKey string

	// AzureAPIVersion is the Azure OpenAI REST API version (Azure only).
	AzureAPIVersion string

	// MaxTokens caps the number of tokens generated per response.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// Factory constructs a chat model bound to a caller-supplied API key.
// Implementations must be safe to call from multiple goroutines.
type Factory interface {
	New(ctx context.Context, apiKey string) (model.BaseChatModel, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context, apiKey string) (model.BaseChatModel, error)

// New calls f.
func (f FactoryFunc) New(ctx context.Context, apiKey string) (model.BaseChatModel, error) {
	return f(ctx, apiKey)
}
