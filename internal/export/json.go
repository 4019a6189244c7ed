package export

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONExporter writes the transcript as one indented JSON document.
type JSONExporter struct{}

// Export writes t to w.
func (e *JSONExporter) Export(t *Transcript, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}

// JSONLExporter writes one turn per line.
type JSONLExporter struct{}

// Export writes t to w.
func (e *JSONLExporter) Export(t *Transcript, w io.Writer) error {
	enc := json.NewEncoder(w)
	for i, turn := range t.Turns {
		if err := enc.Encode(turn); err != nil {
			return fmt.Errorf("failed to encode turn %d: %w", i, err)
		}
	}
	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
