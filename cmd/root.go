// Package cmd implements the workspace-rag command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/workspace-rag/internal/config"
	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

// rootOptions holds the persistent flags and the loaded configuration.
type rootOptions struct {
	configPath string
	verbose    bool
	cfg        *config.AppConfig
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "workspace-rag",
		Short: "Ask questions about your documents and get cited answers",
		Long: `workspace-rag collects web pages, PDFs, CSVs and text files into a
workspace and answers questions from them, citing the passages it used.

Quick Start:
  workspace-rag ingest ./docs/handbook.pdf https://example.com/faq
  workspace-rag ask "How do I request leave?"
  workspace-rag serve                      # HTTP API on :8080`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional
			_ = godotenv.Load()

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logging.SetLevel(logging.ParseLevel(cfg.Log.Level))
			if opts.verbose {
				logging.SetVerbose(true)
			}
			opts.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "Path to YAML config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newIngestCmd(opts),
		newSourcesCmd(opts),
		newHistoryCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
