package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var workspaceID string

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Ingest a directory and keep it in sync",
		Long: `Ingest every supported file in a directory, then follow changes:
new and modified files are re-ingested, deleted files lose their source.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.cfg.Ingest.WatchDir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return errors.New("no directory given and ingest.watch_dir is not set")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ws, err := a.workspace(ctx, workspaceID)
			if err != nil {
				return err
			}
			auto, watcher, err := a.autoIngest(ws.ID)
			if err != nil {
				return err
			}
			defer watcher.Stop()

			n, err := auto.Sync(ctx, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d files from %s\n", n, dir)

			if err := auto.Run(ctx, dir); err != nil && ctx.Err() == nil {
				return err
			}
			logging.Info("Stopped watching %s", dir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspaceID, "workspace", "w", "", "Workspace ID (default workspace if empty)")
	return cmd
}
