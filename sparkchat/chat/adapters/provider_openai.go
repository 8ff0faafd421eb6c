package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	ports "github.com/ZanzyTHEbar/sparkchat/sparkchat/chat/ports"
	"github.com/rs/zerolog"
)

// OpenAIProvider talks the OpenAI-compatible chat completions dialect. Local
// inference servers (llama.cpp server, ollama, vllm) all speak it, which keeps
// the daemon backend-agnostic.
type OpenAIProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

// NewOpenAIProvider creates a provider against baseURL, e.g.
// "http://localhost:8081/v1". apiKey may be empty for local servers.
func NewOpenAIProvider(baseURL, apiKey string, logger zerolog.Logger) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 5 * time.Minute},
		logger:  logger,
	}
}

type oaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type oaTool struct {
	Type     string     `json:"type"`
	Function oaFunction `json:"function"`
}

type oaRequest struct {
	Model       string      `json:"model"`
	Messages    []oaMessage `json:"messages"`
	Tools       []oaTool    `json:"tools,omitempty"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
	Temperature float32     `json:"temperature,omitempty"`
}

type oaToolCall struct {
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type oaResponse struct {
	Choices []struct {
		Message struct {
			Content   string       `json:"content"`
			ToolCalls []oaToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete issues one chat completion round trip.
func (p *OpenAIProvider) Complete(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
	req := oaRequest{
		Model:       opts.Model,
		MaxTokens:   opts.MaxNewTokens,
		Temperature: opts.Temperature,
	}
	if in.System != "" {
		req.Messages = append(req.Messages, oaMessage{Role: "system", Content: in.System})
	}
	for _, m := range in.Messages {
		req.Messages = append(req.Messages, oaMessage{Role: m.Role, Content: m.Content})
	}
	for _, t := range in.Tools {
		req.Tools = append(req.Tools, oaTool{Type: "function", Function: oaFunction{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  json.RawMessage(t.JSONSchema),
		}})
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return ports.Completion{}, fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return ports.Completion{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return ports.Completion{}, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return ports.Completion{}, fmt.Errorf("read completion response: %w", err)
	}

	var parsed oaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ports.Completion{}, fmt.Errorf("decode completion response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := "unexpected status"
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return ports.Completion{}, fmt.Errorf("completion backend: %s (status %d)", msg, resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return ports.Completion{}, fmt.Errorf("completion backend returned no choices")
	}

	choice := parsed.Choices[0].Message
	out := ports.Completion{
		Text: choice.Content,
		Usage: &ports.Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ports.ToolCall{
			Name: tc.Function.Name,
			Args: json.RawMessage(tc.Function.Arguments),
		})
	}
	p.logger.Debug().
		Str("model", opts.Model).
		Int("tool_calls", len(out.ToolCalls)).
		Int("total_tokens", parsed.Usage.TotalTokens).
		Msg("completion round trip")
	return out, nil
}
