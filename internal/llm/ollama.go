package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dosiblog/gateway/internal/log"
)

// OllamaClient talks to a local Ollama instance over its chat API.
type OllamaClient struct {
	baseURL    string
	model      string
	temp       float32
	maxTok     int
	httpClient *http.Client
	logger     log.Logger
}

// NewOllama creates an Ollama-backed client.
func NewOllama(cfg Config, logger log.Logger) (*OllamaClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrNotConfigured)
	}
	baseURL := cfg.OllamaHost
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   cfg.Model,
		temp:    cfg.Temperature,
		maxTok:  cfg.MaxTokens,
		// Large models with tools need time.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     logger.With("component", "llm", "provider", ProviderOllama),
	}, nil
}

// Wire types for the Ollama chat API.
type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaRequest struct {
	Model    string           `json:"model"`
	Messages []ollamaMessage  `json:"messages"`
	Stream   bool             `json:"stream"`
	Tools    []map[string]any `json:"tools,omitempty"`
	Options  map[string]any   `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Chat implements Client.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message, tools []ToolDef) (*Response, error) {
	return c.send(ctx, messages, tools, nil)
}

// ChatStream implements Client using Ollama's newline-delimited JSON stream.
func (c *OllamaClient) ChatStream(ctx context.Context, messages []Message, tools []ToolDef, stream StreamFunc) (*Response, error) {
	return c.send(ctx, messages, tools, stream)
}

func (c *OllamaClient) send(ctx context.Context, messages []Message, tools []ToolDef, stream StreamFunc) (*Response, error) {
	req := ollamaRequest{
		Model:    c.model,
		Messages: toOllamaMessages(messages),
		Stream:   stream != nil,
		Tools:    toOllamaTools(tools),
	}
	if c.temp > 0 || c.maxTok > 0 {
		req.Options = map[string]any{}
		if c.temp > 0 {
			req.Options["temperature"] = c.temp
		}
		if c.maxTok > 0 {
			req.Options["num_predict"] = c.maxTok
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(payload))
	}

	if stream == nil {
		var chat ollamaResponse
		if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return fromOllamaMessage(chat.Message), nil
	}

	// Streaming: newline-delimited JSON chunks; tool calls arrive on the
	// final chunks.
	out := &Response{}
	var text strings.Builder
	decoder := json.NewDecoder(resp.Body)
	for {
		var chunk ollamaResponse
		if err := decoder.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode stream chunk: %w", err)
		}

		if chunk.Message.Content != "" {
			text.WriteString(chunk.Message.Content)
			stream(chunk.Message.Content)
		}
		for _, tc := range chunk.Message.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		if chunk.Done {
			break
		}
	}
	out.Text = text.String()
	return out, nil
}

func toOllamaMessages(messages []Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		om := ollamaMessage{Role: m.Role, Content: m.Content}
		if m.Role == RoleTool {
			om.ToolName = m.ToolName
		}
		for _, tc := range m.ToolCalls {
			var otc ollamaToolCall
			otc.Function.Name = tc.Name
			otc.Function.Arguments = tc.Arguments
			om.ToolCalls = append(om.ToolCalls, otc)
		}
		out = append(out, om)
	}
	return out
}

func toOllamaTools(tools []ToolDef) []map[string]any {
	if len(tools) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return out
}

func fromOllamaMessage(m ollamaMessage) *Response {
	out := &Response{Text: m.Content}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}
