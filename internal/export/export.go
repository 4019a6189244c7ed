// Package export writes a workspace conversation in several file formats.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
)

// Transcript is a workspace conversation prepared for export.
type Transcript struct {
	Workspace string `json:"workspace" yaml:"workspace"`
	Turns     []Turn `json:"turns" yaml:"turns"`
}

// Turn is one exported conversation turn.
type Turn struct {
	Role      string     `json:"role" yaml:"role"`
	Text      string     `json:"text" yaml:"text"`
	Citations []Citation `json:"citations,omitempty" yaml:"citations,omitempty"`
	Time      time.Time  `json:"time" yaml:"time"`
}

// Citation is one exported citation.
type Citation struct {
	Index    int               `json:"index" yaml:"index"`
	ChunkID  string            `json:"chunk_id" yaml:"chunk_id"`
	SourceID string            `json:"source_id" yaml:"source_id"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// NewTranscript builds a transcript from stored turns.
func NewTranscript(ws entities.Workspace, turns []entities.ConversationTurn) *Transcript {
	t := &Transcript{Workspace: ws.Name, Turns: make([]Turn, 0, len(turns))}
	for _, turn := range turns {
		out := Turn{Role: string(turn.Role), Text: turn.Text, Time: turn.CreatedAt.UTC()}
		for _, c := range turn.Citations {
			out.Citations = append(out.Citations, Citation{
				Index:    c.Index,
				ChunkID:  c.ChunkID,
				SourceID: c.SourceID,
				Metadata: c.Metadata,
			})
		}
		t.Turns = append(t.Turns, out)
	}
	return t
}

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(t *Transcript, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "jsonl":
		return &JSONLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: jsonl, md, yaml, json)", format)
	}
}
