package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/workspace-rag/internal/adapters/loader"
	"github.com/0xcro3dile/workspace-rag/internal/domain/usecases"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var workspaceID string

	cmd := &cobra.Command{
		Use:   "ingest <path|url>...",
		Short: "Add files, directories or web pages to the workspace",
		Long: `Load each argument and add it as a source. Directories are walked
recursively; URLs are fetched and their readable text extracted.
Re-ingesting a file replaces its previous source.

Supported files: .txt .md .markdown .csv .pdf (PDFs need the PDF service).`,
		Example: `  workspace-rag ingest notes.md data.csv
  workspace-rag ingest ./docs https://go.dev/doc/effective_go`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ws, err := a.workspace(ctx, workspaceID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, arg := range args {
				if !loader.IsURL(arg) {
					if info, err := os.Stat(arg); err == nil && info.IsDir() {
						auto := usecases.NewAutoIngest(nil, &filteredLoader{MultiLoader: a.loader, exts: a.extensions()}, a.ingest, ws.ID)
						n, err := auto.Sync(ctx, arg)
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "%s %d files from %s\n", citationStyle.Render("✓"), n, arg)
						continue
					}
					if abs, err := filepath.Abs(arg); err == nil {
						arg = abs
					}
				}

				doc, err := a.loader.Load(ctx, arg)
				if err != nil {
					fmt.Fprintln(out, errorStyle.Render("✗ "+arg+": "+err.Error()))
					failed++
					continue
				}
				src, err := a.ingest.Ingest(ctx, ws.ID, doc)
				if err != nil {
					fmt.Fprintln(out, errorStyle.Render("✗ "+arg+": "+usecases.UserMessage(err)))
					failed++
					continue
				}
				fmt.Fprintf(out, "%s %s %s\n", citationStyle.Render("✓"), src.Name,
					metaStyle.Render(fmt.Sprintf("(%s, %d chunks, id %s)", src.Kind, src.ChunkCount, src.ID)))
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d sources failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspaceID, "workspace", "w", "", "Workspace ID (default workspace if empty)")
	return cmd
}
