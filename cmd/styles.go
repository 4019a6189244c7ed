package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginBottom(1)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	citationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	followupStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

// printCitations writes one line per citation, e.g. "[1] s-123 (page=3)".
func printCitations(w io.Writer, citations []entities.Citation) {
	if len(citations) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, metaStyle.Render("Sources:"))
	for _, c := range citations {
		line := fmt.Sprintf("[%d] %s", c.Index, c.SourceID)
		if meta := formatMetadata(c.Metadata); meta != "" {
			line += " (" + meta + ")"
		}
		fmt.Fprintln(w, citationStyle.Render(line))
	}
}

func printFollowups(w io.Writer, followups []string) {
	if len(followups) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, metaStyle.Render("You could also ask:"))
	for _, f := range followups {
		fmt.Fprintln(w, followupStyle.Render("  • "+f))
	}
}

func formatMetadata(meta map[string]string) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+meta[k])
	}
	return strings.Join(parts, ", ")
}
