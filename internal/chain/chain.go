// Package chain runs the conversational retrieval flow: a follow-up question
// is rewritten into a standalone query, the query is run against the caller's
// index, and the chat model answers from the retrieved chunks and the session
// history. Both model calls are eino chains of a chat template and a model.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/pdfchat-go/internal/budget"
	"github.com/54b3r/pdfchat-go/internal/errkind"
	"github.com/54b3r/pdfchat-go/internal/logging"
	"github.com/54b3r/pdfchat-go/internal/rag"
	"github.com/54b3r/pdfchat-go/internal/store"
)

// Config holds the tunables of a Chain. Zero values select the defaults.
type Config struct {
	// RewritePrompt is the system instruction of the rewrite step.
	RewritePrompt string
	// AnswerPrompt is the system instruction of the answer step and must
	// contain {context}.
	AnswerPrompt string
	// TopK is how many chunks are retrieved per question.
	TopK int
	// MaxContextTokens bounds history plus the fixed prompt parts.
	MaxContextTokens int
	// MaxContextChars bounds the stuffed context block.
	MaxContextChars int
}

// Result is the outcome of one answered question.
type Result struct {
	// Answer is the model's reply.
	Answer string
	// RewrittenQuestion is the query the retriever saw.
	RewrittenQuestion string
	// Sources are the chunks stuffed into the answer prompt, best first.
	Sources []rag.Document
}

// Chain answers questions against an index while keeping per-session history.
// It is safe for concurrent use; the chat model is supplied per call because
// it is bound to the caller's API key.
type Chain struct {
	history store.SessionStore
	cfg     Config
	rewrite prompt.ChatTemplate
	answer  prompt.ChatTemplate
}

// New constructs a Chain backed by history.
func New(history store.SessionStore, cfg Config) (*Chain, error) {
	if history == nil {
		return nil, errors.New("chain: session store must not be nil")
	}
	if cfg.RewritePrompt == "" {
		cfg.RewritePrompt = DefaultRewritePrompt
	}
	if cfg.AnswerPrompt == "" {
		cfg.AnswerPrompt = DefaultAnswerPrompt
	}
	if !strings.Contains(cfg.AnswerPrompt, "{"+varContext+"}") {
		return nil, errkind.New(errkind.Config, "chain", "answer prompt must contain {%s}", varContext)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = rag.DefaultTopK
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = budget.DefaultMaxContextChars
	}

	c := &Chain{
		history: history,
		cfg:     cfg,
		rewrite: newTemplate(cfg.RewritePrompt),
		answer:  newTemplate(cfg.AnswerPrompt),
	}
	if err := checkTemplate(c.rewrite, "rewrite", map[string]any{varInput: ""}); err != nil {
		return nil, err
	}
	if err := checkTemplate(c.answer, "answer", map[string]any{varInput: "", varContext: ""}); err != nil {
		return nil, err
	}
	return c, nil
}

// checkTemplate formats tpl with the variables it receives at run time so a
// prompt with an unknown {placeholder} fails here instead of on every
// question. Literal braces are written {{ and }}.
func checkTemplate(tpl prompt.ChatTemplate, name string, vars map[string]any) error {
	vars[varHistory] = []*schema.Message{}
	if _, err := tpl.Format(context.Background(), vars); err != nil {
		return errkind.Wrap(errkind.Config, "chain",
			fmt.Errorf("%s prompt: %w (write literal braces as {{ and }})", name, err))
	}
	return nil
}

// newTemplate builds system, history placeholder, question.
func newTemplate(system string) prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(system),
		schema.MessagesPlaceholder(varHistory, true),
		schema.UserMessage("{"+varInput+"}"),
	)
}

// Rewrite asks the model for a standalone version of question given history.
// The model is called even when history is empty. A blank reply yields the
// question unchanged.
func (c *Chain) Rewrite(ctx context.Context, m model.BaseChatModel, history []*schema.Message, question string) (string, error) {
	out, err := c.run(ctx, "rewrite", c.rewrite, m, map[string]any{
		varHistory: history,
		varInput:   question,
	})
	if err != nil {
		return "", err
	}
	if rewritten := strings.TrimSpace(out.Content); rewritten != "" {
		return rewritten, nil
	}
	return question, nil
}

// Answer asks the model to answer question from contextText and history.
func (c *Chain) Answer(ctx context.Context, m model.BaseChatModel, history []*schema.Message, contextText, question string) (string, error) {
	out, err := c.run(ctx, "answer", c.answer, m, map[string]any{
		varHistory: history,
		varInput:   question,
		varContext: contextText,
	})
	if err != nil {
		return "", err
	}
	answer := strings.TrimSpace(out.Content)
	if answer == "" {
		return "", errkind.New(errkind.ServiceUnavailable, "chain: answer", "malformed model response: empty reply")
	}
	return answer, nil
}

// Ask runs the full flow for one question and records the exchange in the
// session. Nothing is recorded when any step fails.
func (c *Chain) Ask(ctx context.Context, m model.BaseChatModel, idx *rag.Index, sessionID, question string) (*Result, error) {
	log := logging.FromContext(ctx)
	question = strings.TrimSpace(question)

	switch {
	case m == nil:
		return nil, errkind.New(errkind.Credential, "chain", "no chat model: an API key is required")
	case sessionID == "":
		return nil, errkind.New(errkind.Invalid, "chain", "session id must not be empty")
	case question == "":
		return nil, errkind.New(errkind.Invalid, "chain", "question must not be empty")
	case idx == nil:
		return nil, errkind.New(errkind.NotReady, "chain", "upload PDF files before asking a question")
	}

	start := time.Now()
	prior, err := c.history.History(ctx, sessionID)
	if err != nil {
		return nil, errkind.Wrap(errkind.ServiceUnavailable, "chain: load history", err)
	}
	history := toSchema(prior)

	fixed := []*schema.Message{schema.SystemMessage(c.cfg.AnswerPrompt), schema.UserMessage(question)}
	before := len(history)
	history = budget.TrimHistory(fixed, history, c.cfg.MaxContextTokens)
	if dropped := before - len(history); dropped > 0 {
		log.Warn("budget: dropped history messages to fit context window",
			slog.String("session_id", sessionID),
			slog.Int("dropped", dropped),
			slog.Int("retained", len(history)),
			slog.Int("max_tokens", c.cfg.MaxContextTokens),
		)
	}

	rewritten, err := c.Rewrite(ctx, m, history, question)
	if err != nil {
		return nil, err
	}

	chunks, err := idx.Retriever().Retrieve(ctx, rewritten, c.cfg.TopK)
	if err != nil {
		return nil, errkind.Wrap(errkind.ServiceUnavailable, "chain: retrieve", err)
	}
	contextText, used := budget.StuffDocuments(chunks, c.cfg.MaxContextChars)

	answer, err := c.Answer(ctx, m, history, contextText, question)
	if err != nil {
		return nil, err
	}

	if err := c.history.AppendExchange(ctx, sessionID, question, answer); err != nil {
		return nil, errkind.Wrap(errkind.ServiceUnavailable, "chain: save history", err)
	}

	log.Info("chain: question answered",
		slog.String("session_id", sessionID),
		slog.String("index_id", idx.ID),
		slog.Int("history_messages", len(history)),
		slog.Int("retrieved", len(chunks)),
		slog.Int("stuffed", used),
		slog.Duration("duration", time.Since(start)),
	)

	return &Result{
		Answer:            answer,
		RewrittenQuestion: rewritten,
		Sources:           chunks[:used],
	}, nil
}

// run compiles template → model and invokes it once. Compilation is per call
// because the model is per caller.
func (c *Chain) run(ctx context.Context, step string, tpl prompt.ChatTemplate, m model.BaseChatModel, vars map[string]any) (*schema.Message, error) {
	op := "chain: " + step
	runnable, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(tpl).
		AppendChatModel(m).
		Compile(ctx)
	if err != nil {
		return nil, errkind.Wrap(errkind.Config, op, fmt.Errorf("failed to compile: %w", err))
	}

	out, err := runnable.Invoke(ctx, vars)
	if err != nil {
		return nil, classify(op, err)
	}
	if out == nil {
		return nil, errkind.New(errkind.ServiceUnavailable, op, "malformed model response: no message")
	}
	return out, nil
}

func toSchema(msgs []store.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case store.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case store.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		}
	}
	return out
}
