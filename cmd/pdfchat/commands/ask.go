package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/pdfchat-go/internal/config"
	"github.com/54b3r/pdfchat-go/internal/ingestion"
	"github.com/54b3r/pdfchat-go/internal/rag"
	"github.com/54b3r/pdfchat-go/internal/server"
)

// missingKeyWarning matches the web UI's wording.
const missingKeyWarning = "Please enter the chat model API key (--api-key or CHAT_API_KEY)"

var (
	answerLabel = color.New(color.FgGreen, color.Bold).SprintFunc()
	warnLabel   = color.New(color.FgYellow, color.Bold).SprintFunc()
	errorLabel  = color.New(color.FgRed, color.Bold).SprintFunc()
)

// askOptions are the parsed flags of `pdfchat ask`.
type askOptions struct {
	files     []string
	sessionID string
	apiKey    string
	question  string
}

// NewAskCmd constructs the `pdfchat ask` command, which indexes PDFs once and
// answers one question, or every line of stdin when no question is given.
func NewAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask questions about local PDF files",
		Long: `Index one or more PDF files and ask questions about them.

With a question argument the answer is printed and the command exits.
Without one, questions are read line by line from stdin until EOF, all in
the same session, so follow-up questions can refer to earlier answers.

Examples:
  pdfchat ask --file report.pdf "what was revenue in Q3?"
  pdfchat ask -f a.pdf -f b.pdf --session research
  CHAT_API_KEY=gsk_... pdfchat ask -f manual.pdf "how do I reset it?"`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

			if opts.apiKey == "" {
				opts.apiKey = settings.Model.APIKey
			}
			opts.apiKey = strings.TrimSpace(opts.apiKey)
			if opts.apiKey == "" {
				fmt.Fprintln(errOut, warnLabel("Warning:"), missingKeyWarning)
				return nil
			}
			if len(opts.files) == 0 {
				return fmt.Errorf("ask: at least one --file is required")
			}
			opts.question = strings.TrimSpace(strings.Join(args, " "))

			rt, err := buildRuntime(ctx, logger, settings)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer rt.Close()

			uploads, err := readFiles(opts.files)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			idx, err := rt.pipeline.BuildFromPDFs(ctx, uploads)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer idx.Close()
			fmt.Fprintf(errOut, "Indexed %s: %d pages, %d chunks\n",
				strings.Join(idx.Files, ", "), idx.Pages, idx.Chunks)

			chatModel, err := rt.models.New(ctx, opts.apiKey)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			a := &asker{chain: rt.chain, model: chatModel, index: idx, session: opts.sessionID}
			if opts.question != "" {
				return a.answer(ctx, out, opts.question)
			}
			return a.repl(ctx, cmd.InOrStdin(), out, errOut)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.files, "file", "f", nil, "PDF file to index (repeatable)")
	cmd.Flags().StringVarP(&opts.sessionID, "session", "s", config.DefaultSessionID, "Session id for conversation history")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "Chat model API key (default from CHAT_API_KEY)")

	return cmd
}

// asker answers questions against one index within one session.
type asker struct {
	chain   server.Asker
	model   model.BaseChatModel
	index   *rag.Index
	session string
}

func (a *asker) answer(ctx context.Context, out io.Writer, question string) error {
	res, err := a.chain.Ask(ctx, a.model, a.index, a.session, question)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	fmt.Fprintln(out, answerLabel("Assistant:"), res.Answer)
	return nil
}

// repl answers each non-blank line of in. A failed question is reported and
// the loop continues; it left the history untouched.
func (a *asker) repl(ctx context.Context, in io.Reader, out, errOut io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if err := a.answer(ctx, out, question); err != nil {
			fmt.Fprintln(errOut, errorLabel("Error:"), err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("ask: failed to read stdin: %w", err)
	}
	return nil
}

// readFiles loads each path as an upload named after its base name.
func readFiles(paths []string) ([]ingestion.Upload, error) {
	uploads := make([]ingestion.Upload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		uploads = append(uploads, ingestion.Upload{Name: filepath.Base(p), Data: data})
	}
	return uploads, nil
}
