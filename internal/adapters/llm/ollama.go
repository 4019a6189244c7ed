// Package llm provides language model adapters implementing ports.LLMService.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/0xcro3dile/workspace-rag/internal/domain/ports"
	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

// OllamaLLMAdapter implements ports.LLMService using Ollama's chat API.
type OllamaLLMAdapter struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaLLMAdapter creates a new Ollama LLM adapter.
func NewOllamaLLMAdapter(baseURL, model string, timeout time.Duration) *OllamaLLMAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	if timeout <= 0 {
		timeout = 300 * time.Second // long enough for streaming
	}
	return &OllamaLLMAdapter{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// ollamaChatRequest is the Ollama chat API request.
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ports.Message `json:"messages"`
	Stream   bool            `json:"stream"`
}

// ollamaChatResponse is one Ollama chat API response object.
type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

func (a *OllamaLLMAdapter) post(ctx context.Context, messages []ports.Message, stream bool) (*http.Response, error) {
	jsonData, err := json.Marshal(ollamaChatRequest{Model: a.model, Messages: messages, Stream: stream})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		logging.Error("Ollama chat call failed: %v", err)
		return nil, fmt.Errorf("calling Ollama: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("Ollama returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return resp, nil
}

// Generate returns the complete reply to messages.
func (a *OllamaLLMAdapter) Generate(ctx context.Context, messages []ports.Message) (string, error) {
	resp, err := a.post(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if chatResp.Error != "" {
		return "", fmt.Errorf("Ollama error: %s", chatResp.Error)
	}
	return chatResp.Message.Content, nil
}

// GenerateStream streams the reply as newline-delimited JSON objects.
func (a *OllamaLLMAdapter) GenerateStream(ctx context.Context, messages []ports.Message) (<-chan ports.StreamToken, error) {
	resp, err := a.post(ctx, messages, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan ports.StreamToken, 100)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue // Skip malformed lines
			}
			if chunk.Error != "" {
				send(ctx, ch, ports.StreamToken{Error: fmt.Errorf("Ollama error: %s", chunk.Error)})
				return
			}

			if !send(ctx, ch, ports.StreamToken{Content: chunk.Message.Content, Done: chunk.Done}) {
				return
			}
			if chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			send(ctx, ch, ports.StreamToken{Error: err})
			return
		}
		send(ctx, ch, ports.StreamToken{Error: io.ErrUnexpectedEOF})
	}()

	return ch, nil
}

// send delivers tok unless ctx is cancelled first.
func send(ctx context.Context, ch chan<- ports.StreamToken, tok ports.StreamToken) bool {
	select {
	case ch <- tok:
		return true
	case <-ctx.Done():
		return false
	}
}
