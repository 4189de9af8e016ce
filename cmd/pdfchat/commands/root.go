// Package commands defines all Cobra CLI commands for the pdfchat binary.
package commands

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/pdfchat-go/internal/audit"
	"github.com/54b3r/pdfchat-go/internal/config"
	"github.com/54b3r/pdfchat-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// settings is the validated configuration, loaded before any subcommand runs.
var settings *config.Settings

// logger is built after the config file has been applied so LOG_LEVEL and
// LOG_FORMAT from YAML take effect.
var logger *slog.Logger

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pdfchat",
		Short: "Chat with your PDFs",
		Long: `pdfchat indexes uploaded PDF files and answers questions about them,
keeping a conversation history per session so follow-up questions work.

Settings come from environment variables, a .env file in the working
directory, or a YAML config file (~/.pdfchat/config.yaml). Environment
variables always win over the file.
See 'pdfchat --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env is normal.
			_ = godotenv.Load()

			path, err := config.Load(configPath, logging.New())
			if err != nil {
				return err
			}

			logger = logging.New()
			cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
			audit.LogCommandStart(cmd.Context(), logger, cmd.Name(), path)

			if cmd.Name() == "version" {
				return nil
			}
			settings, err = config.LoadSettings()
			return err
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.pdfchat/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewVersionCmd(),
	)

	return root
}
