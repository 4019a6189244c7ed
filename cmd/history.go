package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
	"github.com/0xcro3dile/workspace-rag/internal/export"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		workspaceID string
		format      string
		output      string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or export the workspace conversation",
		Long: `Show the conversation of a workspace. With --format the transcript is
exported as json, jsonl, yaml or md instead.`,
		Example: `  workspace-rag history
  workspace-rag history --format md --output transcript.md`,
		Args: cobra.NoArgs,
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
			turns, err := a.workspaces.History(ctx, ws.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				out = f
			}

			if format == "pretty" {
				printHistory(out, ws, turns)
				return nil
			}
			exporter, err := export.NewExporter(format)
			if err != nil {
				return err
			}
			return exporter.Export(export.NewTranscript(*ws, turns), out)
		},
	}

	cmd.Flags().StringVarP(&workspaceID, "workspace", "w", "", "Workspace ID (default workspace if empty)")
	cmd.Flags().StringVarP(&format, "format", "f", "pretty", "Output format: pretty, json, jsonl, yaml, md")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func printHistory(w io.Writer, ws *entities.Workspace, turns []entities.ConversationTurn) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Workspace %s", ws.Name)))
	if len(turns) == 0 {
		fmt.Fprintln(w, metaStyle.Render("No conversation yet."))
		return
	}
	for _, t := range turns {
		label := userStyle.Render("You")
		if t.Role == entities.RoleAssistant {
			label = assistantStyle.Render("Assistant")
		}
		fmt.Fprintf(w, "%s %s\n", label, metaStyle.Render(t.CreatedAt.Format("2006-01-02 15:04")))
		fmt.Fprintln(w, t.Text)
		printCitations(w, t.Citations)
		fmt.Fprintln(w)
	}
}
