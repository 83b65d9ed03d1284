// Package gateway orchestrates a chat request end to end: load the
// session history, acquire a tool catalog for the request scope, run the
// agent loop, and persist the completed exchange.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dosiblog/gateway/internal/agent"
	"github.com/dosiblog/gateway/internal/broker"
	"github.com/dosiblog/gateway/internal/history"
	"github.com/dosiblog/gateway/internal/llm"
	"github.com/dosiblog/gateway/internal/log"
	"github.com/dosiblog/gateway/internal/tools"
)

// Request modes. Agent mode runs the tool loop; rag mode answers from
// retrieved context with a single model call and no tools.
const (
	ModeAgent = "agent"
	ModeRAG   = "rag"
)

// DefaultSystemPrompt steers the agent-mode model.
const DefaultSystemPrompt = "You are a helpful AI assistant with access to various tools including the DosiBlog knowledge base. Use the tools when needed to answer questions accurately."

// ragUnavailableAnswer is returned in rag mode when no knowledge base is
// configured.
const ragUnavailableAnswer = "RAG system not available."

var (
	// ErrInvalidMode indicates an unrecognized request mode.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrMissingSession indicates a request without a session id.
	ErrMissingSession = errors.New("session id is required")
)

// Request is one inbound chat message.
type Request struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Mode      string `json:"mode,omitempty"`
}

// Reply is the completed answer for a request.
type Reply struct {
	Answer       string   `json:"answer"`
	SessionID    string   `json:"sessionId"`
	ToolsInvoked []string `json:"toolsInvoked,omitempty"`
}

// Events forwards streaming callbacks from the agent loop.
type Events = agent.Events

// ToolInfo describes one catalog entry for the tools listing.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Origin      string `json:"origin"`
}

// ProviderSource supplies the current provider descriptors. Descriptors
// can change at runtime through the administration API, so they are read
// per request.
type ProviderSource interface {
	Providers() []broker.Provider
}

// ProviderSourceFunc adapts a function to a ProviderSource.
type ProviderSourceFunc func() []broker.Provider

func (f ProviderSourceFunc) Providers() []broker.Provider { return f() }

// Deps carries the gateway's collaborators.
type Deps struct {
	Broker     *broker.Broker
	Loop       *agent.Loop
	Model      llm.Client
	History    *history.Store
	Providers  ProviderSource
	LocalTools []broker.Tool

	// Searcher backs rag mode. May be nil when no database is
	// configured.
	Searcher tools.Searcher

	Logger log.Logger
}

// Gateway handles chat requests.
type Gateway struct {
	broker    *broker.Broker
	loop      *agent.Loop
	model     llm.Client
	history   *history.Store
	providers ProviderSource
	local     []broker.Tool
	searcher  tools.Searcher
	logger    log.Logger
}

// New creates a Gateway.
func New(deps Deps) (*Gateway, error) {
	switch {
	case deps.Broker == nil:
		return nil, fmt.Errorf("broker is required")
	case deps.Loop == nil:
		return nil, fmt.Errorf("agent loop is required")
	case deps.Model == nil:
		return nil, fmt.Errorf("model client is required")
	case deps.History == nil:
		return nil, fmt.Errorf("history store is required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Providers == nil {
		deps.Providers = ProviderSourceFunc(func() []broker.Provider { return nil })
	}
	return &Gateway{
		broker:    deps.Broker,
		loop:      deps.Loop,
		model:     deps.Model,
		history:   deps.History,
		providers: deps.Providers,
		local:     deps.LocalTools,
		searcher:  deps.Searcher,
		logger:    deps.Logger.With("component", "gateway"),
	}, nil
}

// Handle answers a request and persists the exchange.
func (g *Gateway) Handle(ctx context.Context, req Request) (*Reply, error) {
	return g.handle(ctx, req, Events{})
}

// HandleStream answers a request, forwarding text fragments and tool
// notifications as they happen. The returned reply carries the complete
// answer; the exchange is persisted only on success.
func (g *Gateway) HandleStream(ctx context.Context, req Request, events Events) (*Reply, error) {
	return g.handle(ctx, req, events)
}

func (g *Gateway) handle(ctx context.Context, req Request, events Events) (*Reply, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, agent.ErrEmptyMessage
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, ErrMissingSession
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeAgent
	}

	past := g.history.GetOrCreate(req.SessionID)

	var (
		result *agent.Result
		err    error
	)
	switch mode {
	case ModeAgent:
		result, err = g.runAgent(ctx, past, req.Message, events)
	case ModeRAG:
		result, err = g.runRAG(ctx, past, req.Message, events)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, req.Mode)
	}
	if err != nil {
		return nil, err
	}

	g.history.Append(req.SessionID, history.RoleUser, req.Message)
	g.history.Append(req.SessionID, history.RoleAssistant, result.Answer)

	return &Reply{
		Answer:       result.Answer,
		SessionID:    req.SessionID,
		ToolsInvoked: result.ToolsInvoked,
	}, nil
}

// runAgent acquires a catalog for the request scope and drives the tool
// loop inside it.
func (g *Gateway) runAgent(ctx context.Context, past []history.Turn, message string, events Events) (*agent.Result, error) {
	var result *agent.Result
	err := g.broker.WithCatalog(ctx, g.providers.Providers(), g.local, func(ctx context.Context, cat *broker.Catalog) error {
		var err error
		result, err = g.loop.RunStream(ctx, past, message, cat, events)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// runRAG answers from retrieved context with a single model call. Tools
// are never offered in this mode.
func (g *Gateway) runRAG(ctx context.Context, past []history.Turn, message string, events Events) (*agent.Result, error) {
	if g.searcher == nil {
		if events.OnText != nil {
			events.OnText(ragUnavailableAnswer)
		}
		return &agent.Result{Answer: ragUnavailableAnswer}, nil
	}

	contextText := tools.NoContext
	results, err := g.searcher.Search(ctx, message, 0)
	if err != nil {
		g.logger.Warn("retrieval failed, answering without context", "error", err)
	} else if len(results) > 0 {
		parts := make([]string, len(results))
		for i, r := range results {
			parts[i] = r.Content
		}
		contextText = strings.Join(parts, "\n")
	}

	messages := make([]llm.Message, 0, len(past)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: ragSystemPrompt(contextText)})
	for _, turn := range past {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})

	var resp *llm.Response
	if events.OnText != nil {
		resp, err = g.model.ChatStream(ctx, messages, nil, llm.StreamFunc(events.OnText))
	} else {
		resp, err = g.model.Chat(ctx, messages, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("rag answer: %w", err)
	}
	return &agent.Result{Answer: resp.Text}, nil
}

func ragSystemPrompt(contextText string) string {
	return "You are a helpful AI assistant. Use the following context to answer questions accurately and naturally.\n" +
		"Context: " + contextText + "\n\n" +
		"Rules:\n" +
		"- Answer naturally without mentioning 'the context' or 'according to the context'\n" +
		"- If you don't know, say so honestly\n" +
		"- Be concise and helpful"
}

// Tools opens a short-lived broker scope and reports the merged catalog.
func (g *Gateway) Tools(ctx context.Context) ([]ToolInfo, error) {
	var infos []ToolInfo
	err := g.broker.WithCatalog(ctx, g.providers.Providers(), g.local, func(_ context.Context, cat *broker.Catalog) error {
		for _, t := range cat.Tools() {
			infos = append(infos, ToolInfo{Name: t.Name, Description: t.Description, Origin: t.Origin})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// Sessions lists known session ids.
func (g *Gateway) Sessions() []string { return g.history.List() }

// SessionHistory returns the stored turns for a session, creating it if
// unknown.
func (g *Gateway) SessionHistory(id string) []history.Turn { return g.history.GetOrCreate(id) }

// ClearSession empties a session's history. The id stays enumerable.
func (g *Gateway) ClearSession(id string) { g.history.Clear(id) }
