// Package broker acquires MCP tool sessions for the duration of a single
// request scope and merges their tools into one catalog.
//
// Sessions are opened when a scope begins and torn down in reverse order
// when it exits, on every path: success, error, panic, and caller
// cancellation. Provider failures are isolated; a provider that cannot be
// reached contributes zero tools and never aborts its siblings.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dosiblog/gateway/internal/log"
)

const (
	// DefaultSetupTimeout bounds connect plus tool discovery per provider.
	DefaultSetupTimeout = 5 * time.Second

	// DefaultTeardownTimeout bounds each session close.
	DefaultTeardownTimeout = time.Second
)

// clientImpl identifies the gateway in the MCP initialize handshake.
var clientImpl = &mcp.Implementation{
	Name:    "dosiblog-gateway",
	Version: "1.0.0",
}

// toolSession is the part of an MCP client session the broker uses.
// *mcp.ClientSession satisfies it; tests substitute fakes.
type toolSession interface {
	ListTools(ctx context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	Close() error
}

// LocalRegistry resolves provider names to in-process MCP servers for the
// local-endpoint rewrite.
type LocalRegistry interface {
	Server(name string) (*mcp.Server, bool)
}

// dialFunc opens a session to a remote provider.
type dialFunc func(ctx context.Context, p Provider) (toolSession, error)

// Broker opens and closes provider sessions around request scopes.
type Broker struct {
	logger          log.Logger
	locals          LocalRegistry
	setupTimeout    time.Duration
	teardownTimeout time.Duration

	// dial is swapped out by tests.
	dial dialFunc
}

// Option adjusts broker construction.
type Option func(*Broker)

// WithSetupTimeout overrides the per-provider setup timeout.
func WithSetupTimeout(d time.Duration) Option {
	return func(b *Broker) { b.setupTimeout = d }
}

// WithTeardownTimeout overrides the per-session close timeout.
func WithTeardownTimeout(d time.Duration) Option {
	return func(b *Broker) { b.teardownTimeout = d }
}

// New creates a Broker. locals may be nil to disable the local rewrite.
func New(logger log.Logger, locals LocalRegistry, opts ...Option) *Broker {
	b := &Broker{
		logger:          logger.With("component", "broker"),
		locals:          locals,
		setupTimeout:    DefaultSetupTimeout,
		teardownTimeout: DefaultTeardownTimeout,
	}
	b.dial = b.dialStreamable
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// conn is one open provider connection with its close functions, innermost
// first.
type conn struct {
	provider string
	closers  []func() error
}

// WithCatalog opens sessions to the given providers, merges their tools
// with localTools into a catalog, runs fn, and tears everything down.
//
// The catalog is only valid inside fn. Invalid descriptors fail the whole
// call before any connection is attempted; once connecting starts, provider
// failures are isolated and only caller cancellation aborts the scope.
func (b *Broker) WithCatalog(ctx context.Context, providers []Provider, localTools []Tool, fn func(ctx context.Context, cat *Catalog) error) error {
	for _, p := range providers {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	cat := newCatalog()
	for _, t := range localTools {
		if t.Origin == "" {
			t.Origin = OriginLocal
		}
		if !cat.add(t) {
			b.logger.Warn("duplicate tool name, keeping first registration",
				"tool", t.Name, "origin", t.Origin)
		}
	}

	var conns []*conn
	defer func() { b.teardown(conns) }()

	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			return err
		}

		c, tools, err := b.connect(ctx, p)
		if err != nil {
			b.logger.Warn("provider unavailable, continuing without it",
				"provider", p.Name, "error", err)
			continue
		}
		conns = append(conns, c)

		for _, t := range tools {
			if !cat.add(t) {
				b.logger.Warn("duplicate tool name, keeping first registration",
					"tool", t.Name, "origin", p.Name)
			}
		}
		b.logger.Debug("provider connected", "provider", p.Name, "tools", len(tools))
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, cat)
}

// connect opens one provider session and discovers its tools, bounded by
// the setup timeout.
func (b *Broker) connect(ctx context.Context, p Provider) (*conn, []Tool, error) {
	setupCtx, cancel := context.WithTimeout(ctx, b.setupTimeout)
	defer cancel()

	sess, closers, err := b.open(setupCtx, p)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting: %w", err)
	}

	result, err := sess.ListTools(setupCtx, nil)
	if err != nil {
		b.closeAll(p.Name, closers)
		return nil, nil, fmt.Errorf("listing tools: %w", err)
	}

	tools := make([]Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		tools = append(tools, proxyTool(sess, p.Name, t))
	}
	return &conn{provider: p.Name, closers: closers}, tools, nil
}

// open establishes the session, preferring an in-process server when the
// provider name is registered locally. A failed local connect falls back to
// the network endpoint.
func (b *Broker) open(ctx context.Context, p Provider) (toolSession, []func() error, error) {
	if b.locals != nil {
		if srv, ok := b.locals.Server(strings.ToLower(p.Name)); ok {
			sess, closers, err := b.openInMemory(ctx, srv)
			if err == nil {
				b.logger.Debug("using in-process provider", "provider", p.Name)
				return sess, closers, nil
			}
			b.logger.Debug("in-process connect failed, falling back to endpoint",
				"provider", p.Name, "error", err)
		}
	}

	sess, err := b.dial(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	return sess, []func() error{sess.Close}, nil
}

// openInMemory wires a client session to an in-process server over the
// SDK's in-memory transport pair.
func (b *Broker) openInMemory(ctx context.Context, srv *mcp.Server) (toolSession, []func() error, error) {
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serverSession, err := srv.Connect(ctx, serverTransport, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("server connect: %w", err)
	}

	client := mcp.NewClient(clientImpl, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		_ = serverSession.Close()
		return nil, nil, fmt.Errorf("client connect: %w", err)
	}

	return clientSession, []func() error{clientSession.Close, serverSession.Close}, nil
}

// dialStreamable connects over streamable HTTP with the descriptor's
// headers applied to every request.
func (b *Broker) dialStreamable(ctx context.Context, p Provider) (toolSession, error) {
	endpoint, headers, err := p.endpoint()
	if err != nil {
		return nil, err
	}

	transport := &mcp.StreamableClientTransport{
		Endpoint: endpoint,
		HTTPClient: &http.Client{
			Transport: &headerTransport{base: http.DefaultTransport, headers: headers},
		},
	}

	client := mcp.NewClient(clientImpl, nil)
	return client.Connect(ctx, transport, nil)
}

// teardown closes connections in reverse order of opening. It never fails:
// close errors and timeouts are logged and swallowed. Deliberately
// independent of the request context so cancelled requests still release
// their sessions.
func (b *Broker) teardown(conns []*conn) {
	for i := len(conns) - 1; i >= 0; i-- {
		b.closeAll(conns[i].provider, conns[i].closers)
	}
}

func (b *Broker) closeAll(provider string, closers []func() error) {
	for _, closeFn := range closers {
		b.closeBounded(provider, closeFn)
	}
}

// closeBounded runs closeFn, giving up after the teardown timeout so one
// hung provider cannot stall the scope exit.
func (b *Broker) closeBounded(provider string, closeFn func() error) {
	done := make(chan error, 1)
	go func() { done <- closeFn() }()

	select {
	case err := <-done:
		if err != nil {
			b.logger.Warn("session close failed", "provider", provider, "error", err)
		}
	case <-time.After(b.teardownTimeout):
		b.logger.Warn("session close timed out", "provider", provider)
	}
}

// proxyTool adapts an advertised MCP tool into a catalog entry whose Invoke
// proxies tools/call through the session that discovered it.
func proxyTool(sess toolSession, provider string, t *mcp.Tool) Tool {
	name := t.Name
	return Tool{
		Name:        name,
		Description: t.Description,
		InputSchema: toolSchema(t.InputSchema),
		Origin:      provider,
		Invoke: func(ctx context.Context, args map[string]any) (string, error) {
			result, err := sess.CallTool(ctx, &mcp.CallToolParams{
				Name:      name,
				Arguments: args,
			})
			if err != nil {
				return "", fmt.Errorf("calling %s: %w", name, err)
			}
			text := resultText(result)
			if result.IsError {
				return "", fmt.Errorf("tool %s failed: %s", name, text)
			}
			return text, nil
		},
	}
}

// toolSchema converts the SDK's loosely typed InputSchema into a
// *jsonschema.Schema. Servers in this process hand over the typed schema
// directly; schemas discovered over the wire arrive as decoded JSON and go
// through a marshal round trip. An unconvertible schema becomes nil, which
// providers treat as "no declared parameters".
func toolSchema(v any) *jsonschema.Schema {
	switch s := v.(type) {
	case nil:
		return nil
	case *jsonschema.Schema:
		return s
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	return &s
}

// resultText flattens the textual content of a tool result.
func resultText(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// headerTransport injects provider headers into every HTTP request made by
// the streamable transport.
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	for key, values := range t.headers {
		for _, v := range values {
			clone.Header.Set(key, v)
		}
	}
	return t.base.RoundTrip(clone)
}
