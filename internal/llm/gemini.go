package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/dosiblog/gateway/internal/log"
)

// GeminiClient talks to the Gemini API through the official genai SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
	temp   float32
	maxTok int32
	logger log.Logger
}

// NewGemini creates a Gemini-backed client.
func NewGemini(ctx context.Context, cfg Config, logger log.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing Gemini API key", ErrNotConfigured)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrNotConfigured)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating genai client: %v", ErrUnavailable, err)
	}

	return &GeminiClient{
		client: client,
		model:  cfg.Model,
		temp:   cfg.Temperature,
		maxTok: int32(cfg.MaxTokens),
		logger: logger.With("component", "llm", "provider", ProviderGemini),
	}, nil
}

// Chat implements Client.
func (c *GeminiClient) Chat(ctx context.Context, messages []Message, tools []ToolDef) (*Response, error) {
	contents, genCfg := c.convert(messages, tools)

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, genCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: generate content: %v", ErrUnavailable, err)
	}
	return fromGenaiResponse(resp), nil
}

// ChatStream implements Client. Tool calls arrive with the final chunks;
// text fragments are forwarded as they are generated.
func (c *GeminiClient) ChatStream(ctx context.Context, messages []Message, tools []ToolDef, stream StreamFunc) (*Response, error) {
	contents, genCfg := c.convert(messages, tools)

	out := &Response{}
	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, genCfg) {
		if err != nil {
			return nil, fmt.Errorf("%w: stream: %v", ErrUnavailable, err)
		}
		if text := resp.Text(); text != "" {
			out.Text += text
			if stream != nil {
				stream(text)
			}
		}
		for _, fc := range resp.FunctionCalls() {
			out.ToolCalls = append(out.ToolCalls, ToolCall{Name: fc.Name, Arguments: fc.Args})
		}
	}
	return out, nil
}

// convert maps the provider-neutral conversation onto genai contents and
// generation config. System messages become the system instruction.
func (c *GeminiClient) convert(messages []Message, tools []ToolDef) ([]*genai.Content, *genai.GenerateContentConfig) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temp),
	}
	if c.maxTok > 0 {
		genCfg.MaxOutputTokens = c.maxTok
	}

	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			genCfg.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)

		case RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))

		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
				continue
			}
			parts := make([]*genai.Part, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: tc.Arguments},
				})
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})

		case RoleTool:
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     m.ToolName,
						Response: map[string]any{"result": m.Content},
					},
				}},
			})
		}
	}

	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				// The raw JSON schema form avoids converting through
				// genai.Schema and back.
				ParametersJsonSchema: t.Parameters,
			})
		}
		genCfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	return contents, genCfg
}

func fromGenaiResponse(resp *genai.GenerateContentResponse) *Response {
	out := &Response{Text: resp.Text()}
	for _, fc := range resp.FunctionCalls() {
		out.ToolCalls = append(out.ToolCalls, ToolCall{Name: fc.Name, Arguments: fc.Args})
	}
	return out
}
