package export

import (
	"fmt"
	"io"
	"strings"
)

// MarkdownExporter renders the transcript for reading, with a source list
// under each cited answer.
type MarkdownExporter struct{}

// Export writes t to w.
func (e *MarkdownExporter) Export(t *Transcript, w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Workspace %s\n\n", t.Workspace)
	fmt.Fprintf(&b, "**Turns:** %d\n\n---\n\n", len(t.Turns))

	for i, turn := range t.Turns {
		fmt.Fprintf(&b, "**%s** (%s)\n\n%s\n\n", turn.Role, turn.Time.Format("2006-01-02 15:04"), escapeMarkdown(turn.Text))
		if len(turn.Citations) > 0 {
			b.WriteString("Sources:\n")
			for _, c := range turn.Citations {
				fmt.Fprintf(&b, "- [%d] %s%s\n", c.Index, c.SourceID, describe(c.Metadata))
			}
			b.WriteString("\n")
		}
		if i < len(t.Turns)-1 {
			b.WriteString("---\n\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}

// describe renders the location hints of a citation.
func describe(meta map[string]string) string {
	var parts []string
	for _, key := range []string{"title", "url", "page", "pages", "row", "chunk"} {
		if v, ok := meta[key]; ok && v != "" {
			parts = append(parts, key+" "+v)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// escapeMarkdown escapes emphasis markers outside code blocks.
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	inCodeBlock := false
	for i, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if !inCodeBlock {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			lines[i] = strings.ReplaceAll(line, "__", "\\_\\_")
		}
	}
	return strings.Join(lines, "\n")
}
