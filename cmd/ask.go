package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
	"github.com/0xcro3dile/workspace-rag/internal/domain/usecases"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		workspaceID string
		sourceIDs   []string
		stream      bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the workspace",
		Long: `Ask a question. Answers drawn from your sources carry [n] markers that
point at the listed citations. Use --source to restrict the search to
specific sources (see "workspace-rag sources").`,
		Example: `  workspace-rag ask "What changed in version 2?"
  workspace-rag ask --stream --source 3f1c... "Summarize this document"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context(), opts.cfg)
			defer cancel()

			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ws, err := a.workspace(ctx, workspaceID)
			if err != nil {
				return err
			}
			req := &entities.QueryRequest{
				WorkspaceID: ws.ID,
				Query:       strings.Join(args, " "),
				SourceIDs:   sourceIDs,
			}

			out := cmd.OutOrStdout()
			if stream {
				events, err := a.queries.QueryStream(ctx, req)
				if err != nil {
					return err
				}
				return printStream(out, events)
			}

			resp, err := a.queries.Query(ctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", usecases.UserMessage(err), err)
			}
			fmt.Fprintln(out, resp.Answer)
			printCitations(out, resp.Citations)
			printFollowups(out, resp.Followups)
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspaceID, "workspace", "w", "", "Workspace ID (default workspace if empty)")
	cmd.Flags().StringSliceVarP(&sourceIDs, "source", "s", nil, "Restrict the search to these source IDs")
	cmd.Flags().BoolVar(&stream, "stream", false, "Print the answer as it is generated")
	return cmd
}

// printStream writes tokens as they arrive and the citations once the
// stream completes. An error event is returned as an error.
func printStream(w io.Writer, events <-chan entities.Event) error {
	var failure error
	for ev := range events {
		switch ev.Type {
		case entities.EventToken:
			fmt.Fprint(w, ev.Token)
		case entities.EventComplete:
			fmt.Fprintln(w)
			printCitations(w, ev.Citations)
			printFollowups(w, ev.Followups)
		case entities.EventError:
			fmt.Fprintln(w)
			fmt.Fprintln(w, errorStyle.Render(ev.Message))
			failure = fmt.Errorf("answer failed: %s", ev.Message)
		}
	}
	return failure
}
