package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpserver "github.com/0xcro3dile/workspace-rag/internal/infrastructure/http"
	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr     string
		watchDir string
		pdfDir   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the query, history and source endpoints.

Answers can be fetched in one response (POST /api/query) or streamed as
server-sent events (GET or POST /api/query/stream).`,
		Example: `  workspace-rag serve
  workspace-rag serve --addr :9000 --watch ./docs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if watchDir == "" {
				watchDir = cfg.Ingest.WatchDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if pdfDir != "" {
				stopPDF, err := a.parser.StartService(ctx, pdfDir)
				if err != nil {
					logging.Warn("PDF service unavailable, PDFs will fail to load: %v", err)
				} else {
					defer stopPDF()
				}
			}

			if watchDir != "" {
				if err := startWatching(ctx, a, watchDir); err != nil {
					return err
				}
			}

			return httpserver.NewServer(a.queries, a.ingest, a.workspaces, a.web, addr).Start(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&watchDir, "watch", "", "Directory to ingest and keep in sync")
	cmd.Flags().StringVar(&pdfDir, "pdf-service-dir", "", "Directory holding pdf_service.py to launch")
	return cmd
}

// startWatching ingests dir once into the default workspace and then keeps
// it in sync in the background until ctx is done.
func startWatching(ctx context.Context, a *app, dir string) error {
	ws, err := a.workspaces.Default(ctx)
	if err != nil {
		return err
	}
	auto, watcher, err := a.autoIngest(ws.ID)
	if err != nil {
		return err
	}

	n, err := auto.Sync(ctx, dir)
	if err != nil {
		watcher.Stop()
		return err
	}
	logging.Info("Ingested %d files from %s", n, dir)

	go func() {
		defer watcher.Stop()
		if err := auto.Run(ctx, dir); err != nil && ctx.Err() == nil {
			logging.Error("Watching %s: %v", dir, err)
		}
	}()
	return nil
}
