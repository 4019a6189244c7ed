package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

// OpenAIAdapter implements ports.EmbeddingService against an
// OpenAI-compatible /embeddings endpoint. Rate limits and 5xx responses are
// retried with capped exponential backoff.
type OpenAIAdapter struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewOpenAIAdapter creates an embeddings adapter. baseURL includes the /v1 prefix.
func NewOpenAIAdapter(baseURL, apiKey, model string, timeout time.Duration) *OpenAIAdapter {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIAdapter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		client:     &http.Client{Timeout: timeout},
		maxRetries: 5,
		sleep:      sleepCtx,
	}
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed generates an embedding for a single text.
func (a *OpenAIAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := a.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds all texts in one request.
func (a *OpenAIAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(openAIEmbedRequest{Model: a.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			if err := a.sleep(ctx, lastDelay(lastErr, attempt-1)); err != nil {
				return nil, err
			}
		}

		payload, retry, err := a.do(ctx, data)
		if err == nil {
			return decodeEmbeddings(payload, len(texts))
		}
		if !retry {
			return nil, err
		}
		logging.Warn("Embedding request failed (attempt %d): %v", attempt+1, err)
		lastErr = err
	}
	return nil, fmt.Errorf("embeddings failed after %d attempts: %w", a.maxRetries+1, lastErr)
}

// retryableError carries the server's Retry-After hint.
type retryableError struct {
	status     string
	retryAfter time.Duration
}

func (e *retryableError) Error() string {
	return "embeddings request failed: " + e.status
}

func (a *OpenAIAdapter) do(ctx context.Context, data []byte) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		rerr := &retryableError{status: resp.Status}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
			rerr.retryAfter = time.Duration(secs) * time.Second
		}
		return nil, true, rerr
	}
	if resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("embeddings request failed: %s", resp.Status)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	return payload, false, nil
}

func decodeEmbeddings(payload []byte, want int) ([][]float32, error) {
	var out openAIEmbedResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Data) != want {
		return nil, fmt.Errorf("expected %d embeddings, got %d", want, len(out.Data))
	}
	sort.SliceStable(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })

	vectors := make([][]float32, want)
	for i, d := range out.Data {
		if len(d.Embedding) == 0 {
			return nil, errors.New("no embedding returned")
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

func lastDelay(err error, attempt int) time.Duration {
	var rerr *retryableError
	if errors.As(err, &rerr) && rerr.retryAfter > 0 {
		return rerr.retryAfter
	}
	return retryDelay(attempt)
}

// retryDelay is exponential backoff from 200ms capped at 5s.
func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		attempt = 5
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
