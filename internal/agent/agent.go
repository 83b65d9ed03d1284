// Package agent drives the model/tool conversation loop for one request.
//
// Each run alternates between waiting on the model and dispatching the
// tools it requests, bounded by a fixed tool-turn ceiling so a confused
// model cannot spin forever.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/dosiblog/gateway/internal/broker"
	"github.com/dosiblog/gateway/internal/history"
	"github.com/dosiblog/gateway/internal/llm"
	"github.com/dosiblog/gateway/internal/log"
)

var (
	// ErrUnknownTool indicates the model requested a tool that is not in
	// the request's catalog. Hard error: the tool is never invoked and the
	// request fails.
	ErrUnknownTool = errors.New("unknown tool requested")

	// ErrToolLoopExceeded indicates the model kept requesting tools past
	// the turn ceiling without producing an answer.
	ErrToolLoopExceeded = errors.New("tool loop exceeded")

	// ErrEmptyMessage indicates a blank user message.
	ErrEmptyMessage = errors.New("empty message")
)

// DefaultMaxToolTurns bounds model/tool alternations per request.
const DefaultMaxToolTurns = 8

// Model call rate limiting, shared across requests.
const (
	requestsPerSecond = 10
	burstSize         = 30
)

// Config holds loop parameters.
type Config struct {
	SystemPrompt string
	MaxToolTurns int
}

// Events receives streaming callbacks during a run. Either callback may be
// nil. OnTool fires when a tool is dispatched, carrying only the name; tool
// results are never streamed.
type Events struct {
	OnText func(chunk string)
	OnTool func(name string)
}

// Result is the outcome of a completed run.
type Result struct {
	Answer       string
	ToolsInvoked []string
}

// Loop owns the model client and runs request conversations against
// per-request tool catalogs.
type Loop struct {
	client  llm.Client
	limiter *rate.Limiter
	logger  log.Logger
	cfg     Config
}

// New creates a Loop.
func New(client llm.Client, logger log.Logger, cfg Config) (*Loop, error) {
	if client == nil {
		return nil, errors.New("llm client is required")
	}
	if cfg.MaxToolTurns <= 0 {
		cfg.MaxToolTurns = DefaultMaxToolTurns
	}
	return &Loop{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize),
		logger:  logger.With("component", "agent"),
		cfg:     cfg,
	}, nil
}

// Run executes the loop without streaming.
func (l *Loop) Run(ctx context.Context, past []history.Turn, userMsg string, cat *broker.Catalog) (*Result, error) {
	return l.run(ctx, past, userMsg, cat, Events{})
}

// RunStream executes the loop, delivering text fragments and tool
// notifications through events as they happen.
func (l *Loop) RunStream(ctx context.Context, past []history.Turn, userMsg string, cat *broker.Catalog, events Events) (*Result, error) {
	return l.run(ctx, past, userMsg, cat, events)
}

func (l *Loop) run(ctx context.Context, past []history.Turn, userMsg string, cat *broker.Catalog, events Events) (*Result, error) {
	if strings.TrimSpace(userMsg) == "" {
		return nil, ErrEmptyMessage
	}

	messages := l.seed(past, userMsg)
	tools := toolDefs(cat)

	var invoked []string
	var lastText string

	for turn := 0; turn < l.cfg.MaxToolTurns; turn++ {
		resp, err := l.modelTurn(ctx, messages, tools, events.OnText)
		if err != nil {
			return nil, err
		}

		if len(resp.ToolCalls) == 0 {
			return &Result{Answer: resp.Text, ToolsInvoked: invoked}, nil
		}
		if resp.Text != "" {
			lastText = resp.Text
		}

		// Validate the whole batch before dispatching anything: an unknown
		// name fails the request and no tool in the batch runs.
		for _, tc := range resp.ToolCalls {
			if _, ok := cat.Lookup(tc.Name); !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownTool, tc.Name)
			}
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			tool, _ := cat.Lookup(tc.Name)
			if events.OnTool != nil {
				events.OnTool(tc.Name)
			}

			output, err := tool.Invoke(ctx, tc.Arguments)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				// Execution failures go back to the model as the tool
				// result so it can recover or apologize.
				l.logger.Warn("tool invocation failed", "tool", tc.Name, "error", err)
				output = "tool error: " + err.Error()
			}
			invoked = append(invoked, tc.Name)

			messages = append(messages, llm.Message{
				Role:     llm.RoleTool,
				ToolName: tc.Name,
				Content:  output,
			})
		}
	}

	l.logger.Warn("tool turn ceiling reached", "turns", l.cfg.MaxToolTurns, "invoked", len(invoked))
	if lastText != "" {
		return &Result{Answer: lastText, ToolsInvoked: invoked}, nil
	}
	return nil, fmt.Errorf("%w: no answer after %d tool turns", ErrToolLoopExceeded, l.cfg.MaxToolTurns)
}

// modelTurn performs one rate-limited model call, streaming when requested.
func (l *Loop) modelTurn(ctx context.Context, messages []llm.Message, tools []llm.ToolDef, onText func(string)) (*llm.Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	if onText != nil {
		return l.client.ChatStream(ctx, messages, tools, llm.StreamFunc(onText))
	}
	return l.client.Chat(ctx, messages, tools)
}

// seed builds the initial conversation: system prompt, recorded history,
// then the new user message.
func (l *Loop) seed(past []history.Turn, userMsg string) []llm.Message {
	messages := make([]llm.Message, 0, len(past)+2)
	if l.cfg.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: l.cfg.SystemPrompt})
	}
	for _, turn := range past {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: userMsg})
}

// toolDefs projects the catalog into model-facing declarations.
func toolDefs(cat *broker.Catalog) []llm.ToolDef {
	if cat == nil {
		return nil
	}
	tools := cat.Tools()
	defs := make([]llm.ToolDef, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, llm.ToolDef{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
		})
	}
	return defs
}
