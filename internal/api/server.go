// Package api exposes the gateway over HTTP: chat (sync and SSE
// streaming), session management, tools info, and MCP provider
// administration.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/dosiblog/gateway/internal/config"
	"github.com/dosiblog/gateway/internal/gateway"
	"github.com/dosiblog/gateway/internal/history"
	"github.com/dosiblog/gateway/internal/llm"
	"github.com/dosiblog/gateway/internal/log"
)

// ChatService is the part of the gateway the HTTP layer uses.
// *gateway.Gateway satisfies it; tests substitute stubs.
type ChatService interface {
	Handle(ctx context.Context, req gateway.Request) (*gateway.Reply, error)
	HandleStream(ctx context.Context, req gateway.Request, events gateway.Events) (*gateway.Reply, error)
	Tools(ctx context.Context) ([]gateway.ToolInfo, error)
	Sessions() []string
	SessionHistory(id string) []history.Turn
	ClearSession(id string)
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      log.Logger
	Service     ChatService           // Required
	Providers   *config.ProviderStore // Optional: nil disables provider administration
	LLM         *llm.Switcher         // Optional: nil disables runtime LLM reconfiguration
	CORSOrigins []string
	RateBurst   int // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("chat service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{service: cfg.Service, logger: logger}
	sh := &sessionHandler{service: cfg.Service, logger: logger}
	th := &toolsHandler{service: cfg.Service, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", ch.send)
	mux.HandleFunc("POST /api/chat/stream", ch.stream)

	mux.HandleFunc("GET /api/sessions", sh.list)
	mux.HandleFunc("GET /api/session/{id}", sh.get)
	mux.HandleFunc("DELETE /api/session/{id}", sh.clear)

	mux.HandleFunc("GET /api/tools", th.list)

	if cfg.Providers != nil {
		ph := &providerHandler{store: cfg.Providers, logger: logger}
		mux.HandleFunc("GET /api/mcp-servers", ph.list)
		mux.HandleFunc("POST /api/mcp-servers", ph.add)
		mux.HandleFunc("PUT /api/mcp-servers/{name}", ph.update)
		mux.HandleFunc("DELETE /api/mcp-servers/{name}", ph.remove)
	}

	if cfg.LLM != nil {
		lh := &llmConfigHandler{switcher: cfg.LLM, logger: logger}
		mux.HandleFunc("GET /api/llm-config", lh.get)
		mux.HandleFunc("POST /api/llm-config", lh.set)
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID precedes Logging so request_id is available in log
	// attributes; CORS precedes RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", healthHandler(cfg.Service, cfg.Providers, logger))
	topMux.HandleFunc("GET /ready", ready(logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
