package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSourcesCmd(opts *rootOptions) *cobra.Command {
	var (
		workspaceID string
		deleteID    string
	)

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List or delete workspace sources",
		Example: `  workspace-rag sources
  workspace-rag sources --delete 3f1c9a...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if deleteID != "" {
				if err := a.ingest.Delete(ctx, deleteID); err != nil {
					return fmt.Errorf("deleting source %s: %w", deleteID, err)
				}
				fmt.Fprintf(out, "Deleted source %s\n", deleteID)
				return nil
			}

			ws, err := a.workspace(ctx, workspaceID)
			if err != nil {
				return err
			}
			sources, err := a.workspaces.Sources(ctx, ws.ID)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Workspace %s: %d source(s)", ws.Name, len(sources))))
			if len(sources) == 0 {
				fmt.Fprintln(out, metaStyle.Render("Nothing ingested yet. Try: workspace-rag ingest <path|url>"))
				return nil
			}
			for _, s := range sources {
				fmt.Fprintf(out, "%s  %s\n", userStyle.Render(s.Name), metaStyle.Render(s.ID))
				fmt.Fprintln(out, metaStyle.Render(fmt.Sprintf("  %s, %d chunks, added %s",
					s.Kind, s.ChunkCount, s.CreatedAt.Format("2006-01-02 15:04"))))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspaceID, "workspace", "w", "", "Workspace ID (default workspace if empty)")
	cmd.Flags().StringVar(&deleteID, "delete", "", "Delete the source with this ID")
	return cmd
}
