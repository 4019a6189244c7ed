package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
)

// CSVLoader turns each data row of a CSV file into one segment of
// "column: value" pairs. The first row is the header.
type CSVLoader struct{}

// NewCSVLoader creates a CSV loader.
func NewCSVLoader() *CSVLoader {
	return &CSVLoader{}
}

// Load reads the CSV at path.
func (l *CSVLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s is empty", filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var segments []entities.Segment
	for row := 1; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", row, err)
		}

		text := formatRow(header, record)
		if text == "" {
			continue
		}
		segments = append(segments, entities.Segment{
			Text:     text,
			Metadata: map[string]string{"row": strconv.Itoa(row)},
		})
	}

	return &entities.Document{
		Name:     filepath.Base(path),
		Origin:   path,
		Kind:     entities.SourceCSV,
		Segments: segments,
	}, nil
}

// SupportedExtensions returns file extensions.
func (l *CSVLoader) SupportedExtensions() []string {
	return []string{".csv"}
}

func formatRow(header, record []string) string {
	parts := make([]string, 0, len(record))
	for i, value := range record {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		col := fmt.Sprintf("column %d", i+1)
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			col = strings.TrimSpace(header[i])
		}
		parts = append(parts, col+": "+value)
	}
	return strings.Join(parts, ", ")
}
