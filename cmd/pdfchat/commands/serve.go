package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/pdfchat-go/internal/server"
)

// NewServeCmd constructs the `pdfchat serve` command, which starts the HTTP
// server and serves the web UI.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the pdfchat HTTP server and web UI",
		Long: `Start the pdfchat HTTP server.

The web UI asks for a chat model API key, a session id and a set of PDF
files, then answers questions about them. Each browser gets its own index;
uploading again replaces it.

Examples:
  pdfchat serve
  pdfchat serve --port 9090
  INDEX_BACKEND=qdrant pdfchat serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logger
			log.Info("serve starting", slog.String("provider", settings.Model.Provider))

			rt, err := buildRuntime(ctx, log, settings)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() {
				if err := rt.Close(); err != nil {
					log.Warn("serve: shutdown cleanup failed", slog.Any("error", err))
				}
			}()

			if !cmd.Flags().Changed("host") {
				host = settings.Server.Host
			}
			if !cmd.Flags().Changed("port") {
				port = settings.Server.Port
			}

			srv, err := server.New(server.Dependencies{
				Indexer:  rt.pipeline,
				Chain:    rt.chain,
				Models:   rt.models,
				Sessions: rt.sessions,
			}, &server.Config{
				Host:           host,
				Port:           port,
				MaxUploadBytes: int64(settings.Server.MaxUploadMB) << 20,
				Logger:         log,
				Pingers:        rt.pingers,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (default from PDFCHAT_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (default from PDFCHAT_PORT)")

	return cmd
}
