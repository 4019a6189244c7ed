// Package embedding provides adapters implementing ports.EmbeddingService.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

// ollamaParallelism bounds concurrent requests in EmbedBatch. Ollama
// queues requests per model, so more than a few only adds latency.
const ollamaParallelism = 4

// OllamaAdapter embeds text through Ollama's /api/embeddings endpoint,
// one prompt per request.
type OllamaAdapter struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaAdapter creates an adapter. Empty arguments select the local
// daemon, nomic-embed-text and a 60s timeout.
func NewOllamaAdapter(baseURL, model string, timeout time.Duration) *OllamaAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// Embed returns the vector for text.
func (a *OllamaAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: a.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		logging.Error("Ollama embedding call failed: %v", err)
		return nil, fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("Ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	switch {
	case out.Error != "":
		return nil, fmt.Errorf("Ollama error: %s", out.Error)
	case len(out.Embedding) == 0:
		return nil, errors.New("no embedding returned")
	}
	return out.Embedding, nil
}

// EmbedBatch embeds texts with a few requests in flight and returns the
// vectors in input order. The first failure cancels the rest. All vectors
// must have the same dimension.
func (a *OllamaAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	logging.Debug("Embedding %d texts with %s", len(texts), a.model)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([][]float32, len(texts))
	jobs := make(chan int)
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)

	workers := min(ollamaParallelism, len(texts))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				vec, err := a.Embed(ctx, texts[i])
				if err != nil {
					once.Do(func() {
						firstErr = fmt.Errorf("embedding text %d: %w", i, err)
						cancel()
					})
					continue
				}
				out[i] = vec
			}
		}()
	}

feed:
	for i := range texts {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if len(out[i]) != len(out[0]) {
			return nil, fmt.Errorf("embedding text %d: dimension %d, want %d", i, len(out[i]), len(out[0]))
		}
	}
	return out, nil
}
