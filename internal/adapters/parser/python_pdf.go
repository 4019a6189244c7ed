// Package parser extracts text from PDFs through an external parsing service.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/0xcro3dile/workspace-rag/internal/domain/ports"
	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

// DefaultServiceURL is where the PDF service listens unless configured.
const DefaultServiceURL = "http://localhost:8081"

// PythonPDFParser implements ports.DocumentParser by posting PDF bytes to a
// small Python service (pdf_service.py) that returns the extracted text.
type PythonPDFParser struct {
	serviceURL string
	client     *http.Client
	cmd        *exec.Cmd
}

// NewPythonPDFParser creates a parser for the service at serviceURL.
func NewPythonPDFParser(serviceURL string) *PythonPDFParser {
	if serviceURL == "" {
		serviceURL = DefaultServiceURL
	}
	return &PythonPDFParser{
		serviceURL: strings.TrimRight(serviceURL, "/"),
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

type parseResponse struct {
	Text    string `json:"text"`
	Pages   int    `json:"pages"`
	Library string `json:"library,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Parse extracts text from PDF bytes.
func (p *PythonPDFParser) Parse(ctx context.Context, data []byte, filename string) (*ports.ParsedText, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serviceURL+"/parse", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("X-Filename", filepath.Base(filename))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling PDF service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var result parseResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("PDF service returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("PDF parse error: %s", result.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("PDF service returned status %d", resp.StatusCode)
	}

	text := cleanText(result.Text)
	if text == "" {
		return nil, fmt.Errorf("no text extracted from %s", filepath.Base(filename))
	}
	logging.Debug("Parsed %s: %d pages via %s", filename, result.Pages, result.Library)
	return &ports.ParsedText{Text: text, Pages: result.Pages}, nil
}

// SupportedFormats returns formats this parser handles.
func (p *PythonPDFParser) SupportedFormats() []string {
	return []string{"pdf"}
}

// StartService launches scriptDir/pdf_service.py and waits until it reports
// healthy. The returned func stops it.
func (p *PythonPDFParser) StartService(ctx context.Context, scriptDir string) (func(), error) {
	script := filepath.Join(scriptDir, "pdf_service.py")
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("pdf_service.py not found at %s", script)
	}

	p.cmd = exec.Command("python3", script)
	p.cmd.Stdout = os.Stderr
	p.cmd.Stderr = os.Stderr
	if err := p.cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting Python service: %w", err)
	}

	stop := func() {
		if p.cmd != nil && p.cmd.Process != nil {
			p.cmd.Process.Kill()
			p.cmd.Wait()
		}
	}

	deadline := time.Now().Add(10 * time.Second)
	for !p.IsServiceHealthy(ctx) {
		if time.Now().After(deadline) {
			stop()
			return nil, errors.New("PDF service did not become healthy")
		}
		select {
		case <-ctx.Done():
			stop()
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	logging.Info("PDF service started at %s", p.serviceURL)
	return stop, nil
}

// IsServiceHealthy checks if the service is running.
func (p *PythonPDFParser) IsServiceHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serviceURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// cleanText drops control characters left over from extraction.
func cleanText(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r >= 32 && r != 0x7f && r != 0xfffd {
			return r
		}
		return -1
	}, s))
}
