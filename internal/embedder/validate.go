package embedder

import (
	"log/slog"
	"strings"

	"github.com/54b3r/pdfchat-go/internal/config"
)

// knownChatModelFragments identify chat/completion models which are NOT
// suitable for embedding.
var knownChatModelFragments = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"llama3",
	"llama-3",
	"llama2",
	"mistral",
	"mixtral",
	"gemma2",
	"gemma-2",
	"claude",
	"deepseek",
	"qwen",
}

func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, frag := range knownChatModelFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// ValidateSettings is a pre-flight check run before the embedder is built.
// It returns the construction error NewFromSettings would return, so the
// operator sees it at startup, and logs a warning when EMBEDDING_MODEL looks
// like a chat model rather than an embedding model.
func ValidateSettings(log *slog.Logger, s config.EmbeddingSettings) error {
	if _, err := NewFromSettings(s); err != nil {
		return err
	}
	if s.Model != "" && looksLikeChatModel(s.Model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", s.Model),
			slog.String("hint", "use a dedicated embedding model e.g. "+DefaultHuggingFaceModel),
		)
	}
	log.Debug("embedder: settings validated",
		slog.String("provider", orDefault(s.Provider, "huggingface")),
		slog.String("model", ModelName(s)),
		slog.Int("dimensions", DefaultDimensions(s)),
	)
	return nil
}
