package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/0xcro3dile/workspace-rag/internal/domain/ports"
	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

// OpenAIAdapter implements ports.LLMService against an OpenAI-compatible
// /chat/completions endpoint (OpenAI, LM Studio, llama.cpp server, vLLM).
type OpenAIAdapter struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIAdapter creates a chat adapter. baseURL includes the /v1 prefix.
// An empty apiKey sends no Authorization header, which local servers accept.
func NewOpenAIAdapter(baseURL, apiKey, model string, timeout time.Duration) *OpenAIAdapter {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &OpenAIAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type openAIChatRequest struct {
	Model    string          `json:"model"`
	Messages []ports.Message `json:"messages"`
	Stream   bool            `json:"stream"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *OpenAIAdapter) post(ctx context.Context, messages []ports.Message, stream bool) (*http.Response, error) {
	body, err := json.Marshal(openAIChatRequest{Model: a.model, Messages: messages, Stream: stream})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		logging.Error("Chat completion call failed: %v", err)
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("chat HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	return resp, nil
}

// Generate returns the complete reply to messages.
func (a *OpenAIAdapter) Generate(ctx context.Context, messages []ports.Message) (string, error) {
	resp, err := a.post(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if out.Error != nil {
		return "", errors.New(out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return out.Choices[0].Message.Content, nil
}

// GenerateStream streams the reply from server-sent "data:" lines until the
// [DONE] sentinel.
func (a *OpenAIAdapter) GenerateStream(ctx context.Context, messages []ports.Message) (<-chan ports.StreamToken, error) {
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
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				send(ctx, ch, ports.StreamToken{Done: true})
				return
			}

			var chunk openAIChatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				send(ctx, ch, ports.StreamToken{Error: errors.New(chunk.Error.Message)})
				return
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if !send(ctx, ch, ports.StreamToken{Content: chunk.Choices[0].Delta.Content}) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			send(ctx, ch, ports.StreamToken{Error: err})
			return
		}
		// some servers close the stream without the sentinel
		send(ctx, ch, ports.StreamToken{Done: true})
	}()

	return ch, nil
}
