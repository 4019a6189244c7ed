// Package loader turns files and URLs into segmented documents for ingestion.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
	"github.com/0xcro3dile/workspace-rag/internal/domain/ports"
)

// Loader is a single-format document loader.
type Loader interface {
	Load(ctx context.Context, location string) (*entities.Document, error)
}

// TextLoader loads plain text documents (.txt, .md).
type TextLoader struct{}

// NewTextLoader creates a new text document loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load reads a text document from the given path as a single segment.
func (l *TextLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return &entities.Document{
		Name:     filepath.Base(path),
		Origin:   path,
		Kind:     entities.SourceTXT,
		Segments: []entities.Segment{{Text: string(content)}},
	}, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// PDFLoader loads PDF documents through a DocumentParser.
type PDFLoader struct {
	parser ports.DocumentParser
}

// NewPDFLoader creates a PDF loader backed by parser.
func NewPDFLoader(parser ports.DocumentParser) *PDFLoader {
	return &PDFLoader{parser: parser}
}

// Load extracts the text of the PDF at path.
func (l *PDFLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	parsed, err := l.parser.Parse(ctx, data, path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	meta := map[string]string{}
	if parsed.Pages > 0 {
		meta["pages"] = strconv.Itoa(parsed.Pages)
	}
	return &entities.Document{
		Name:     filepath.Base(path),
		Origin:   path,
		Kind:     entities.SourcePDF,
		Segments: []entities.Segment{{Text: parsed.Text, Metadata: meta}},
	}, nil
}

// SupportedExtensions returns file extensions.
func (l *PDFLoader) SupportedExtensions() []string {
	return []string{".pdf"}
}

// MultiLoader dispatches to a loader by URL scheme or file extension.
type MultiLoader struct {
	loaders map[string]Loader
	web     Loader
}

// NewMultiLoader creates a loader for text, CSV and web sources. PDFs are
// handled when parser is non-nil.
func NewMultiLoader(parser ports.DocumentParser, web *WebLoader) *MultiLoader {
	text := NewTextLoader()
	m := &MultiLoader{loaders: map[string]Loader{}}
	for _, ext := range text.SupportedExtensions() {
		m.loaders[ext] = text
	}
	m.loaders[".csv"] = NewCSVLoader()
	if parser != nil {
		m.loaders[".pdf"] = NewPDFLoader(parser)
	}
	if web != nil {
		m.web = web
	}
	return m
}

// Load dispatches to the appropriate loader.
func (m *MultiLoader) Load(ctx context.Context, location string) (*entities.Document, error) {
	if IsURL(location) {
		if m.web == nil {
			return nil, fmt.Errorf("web sources are not enabled")
		}
		return m.web.Load(ctx, location)
	}

	ext := strings.ToLower(filepath.Ext(location))
	loader, ok := m.loaders[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	return loader.Load(ctx, location)
}

// SupportedExtensions returns all supported extensions, sorted.
func (m *MultiLoader) SupportedExtensions() []string {
	exts := make([]string, 0, len(m.loaders))
	for ext := range m.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsURL reports whether location is an http(s) URL.
func IsURL(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
