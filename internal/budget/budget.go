// Package budget keeps prompts inside the chat model's context window.
// Because several chat backends with different tokenizers are supported, it
// uses a character heuristic, 1 token ≈ 4 characters, rather than a real
// tokenizer. History is trimmed oldest-first and retrieved context is
// bounded by a character cap.
package budget

import (
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/pdfchat-go/internal/rag"
)

const (
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input budget for history plus
	// the fixed prompt parts.
	DefaultMaxContextTokens = 12000

	// DefaultMaxContextChars bounds the retrieved context stuffed into the
	// answer prompt. Five 5000-character chunks do not fit; four do.
	DefaultMaxContextChars = 24000

	// documentSeparator joins stuffed chunks.
	documentSeparator = "\n\n"
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for msgs,
// summing role + content plus a small per-message overhead.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimHistory removes the oldest messages from history until fixed + history
// fits within maxTokens. fixed holds what must never be dropped (system
// prompt with its context, the current question). A history that would start
// with an assistant turn after trimming loses that turn too, so the model
// never sees an answer without its question.
//
// If even an empty history exceeds the budget, the empty slice is returned.
func TrimHistory(fixed, history []*schema.Message, maxTokens int) []*schema.Message {
	if len(history) == 0 {
		return history
	}

	fixedTokens := EstimateMessages(fixed)
	trimmed := false
	for len(history) > 0 && fixedTokens+EstimateMessages(history) > maxTokens {
		history = history[1:]
		trimmed = true
	}
	for trimmed && len(history) > 0 && history[0].Role == schema.Assistant {
		history = history[1:]
	}
	return history
}

// StuffDocuments joins the contents of docs, best first, with blank lines
// between them, stopping before the result would exceed maxChars characters
// (runes, the unit the splitter sizes chunks in). The first document is
// truncated rather than dropped so an answer always has some context. It
// returns the joined text and how many documents contributed.
// maxChars <= 0 means no limit.
func StuffDocuments(docs []rag.Document, maxChars int) (string, int) {
	var b strings.Builder
	chars, used := 0, 0
	sep := utf8.RuneCountInString(documentSeparator)
	for _, d := range docs {
		n := utf8.RuneCountInString(d.Content)
		extra := n
		if used > 0 {
			extra += sep
		}
		if maxChars > 0 && chars+extra > maxChars {
			if used == 0 {
				b.WriteString(truncate(d.Content, maxChars))
				used++
			}
			break
		}
		if used > 0 {
			b.WriteString(documentSeparator)
		}
		b.WriteString(d.Content)
		chars += extra
		used++
	}
	return b.String(), used
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
