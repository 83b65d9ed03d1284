package llm

import (
	"context"
	"sync"

	"github.com/dosiblog/gateway/internal/log"
)

// Switcher is a Client whose provider configuration can be replaced at
// runtime. Requests in flight keep the client they started with; new
// requests see the new configuration.
type Switcher struct {
	logger log.Logger

	mu     sync.RWMutex
	client Client
	cfg    Config
}

// NewSwitcher builds the initial client from cfg and wraps it.
func NewSwitcher(ctx context.Context, cfg Config, logger log.Logger) (*Switcher, error) {
	client, err := New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Switcher{logger: logger, client: client, cfg: cfg}, nil
}

// Switch replaces the active provider. The new client is fully constructed
// and validated before the swap, so a bad configuration leaves the current
// one in place.
func (s *Switcher) Switch(ctx context.Context, cfg Config) error {
	client, err := New(ctx, cfg, s.logger)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.client = client
	s.cfg = cfg
	s.mu.Unlock()

	s.logger.Info("llm provider switched", "provider", cfg.Provider, "model", cfg.Model)
	return nil
}

// Config returns a copy of the active configuration.
func (s *Switcher) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Switcher) current() Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Chat implements Client.
func (s *Switcher) Chat(ctx context.Context, messages []Message, tools []ToolDef) (*Response, error) {
	return s.current().Chat(ctx, messages, tools)
}

// ChatStream implements Client.
func (s *Switcher) ChatStream(ctx context.Context, messages []Message, tools []ToolDef, stream StreamFunc) (*Response, error) {
	return s.current().ChatStream(ctx, messages, tools, stream)
}
