// Package llm abstracts the chat model behind a small client interface so
// the agent loop does not care which provider is configured.
package llm

import (
	"context"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

var (
	// ErrNotConfigured indicates a configuration problem: unknown provider,
	// missing API key, or missing model name.
	ErrNotConfigured = errors.New("llm not configured")

	// ErrUnavailable indicates the provider could not be reached or
	// returned a transport-level failure.
	ErrUnavailable = errors.New("llm unavailable")
)

// Message is one entry of a model conversation.
type Message struct {
	Role    string
	Content string

	// ToolCalls is set on assistant messages that request tool execution.
	ToolCalls []ToolCall

	// ToolName is set on tool messages and names the tool that produced
	// Content.
	ToolName string
}

// ToolCall is a model request to execute a tool.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// ToolDef describes a callable tool to the model.
type ToolDef struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// Response is a single model turn: either final text, tool calls, or both.
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// StreamFunc receives text fragments in generation order.
type StreamFunc func(chunk string)

// Client is implemented per provider.
type Client interface {
	// Chat runs one model turn.
	Chat(ctx context.Context, messages []Message, tools []ToolDef) (*Response, error)

	// ChatStream runs one model turn, delivering text fragments to stream
	// as they are generated. The returned Response carries the full text.
	ChatStream(ctx context.Context, messages []Message, tools []ToolDef, stream StreamFunc) (*Response, error)
}

// Config selects and parameterizes a provider.
type Config struct {
	Provider    string
	Model       string
	APIKey      string // gemini only
	OllamaHost  string // ollama only
	Temperature float32
	MaxTokens   int
}
