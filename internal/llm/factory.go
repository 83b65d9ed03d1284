package llm

import (
	"context"
	"fmt"

	"github.com/dosiblog/gateway/internal/log"
)

// New selects a provider implementation from the configuration.
func New(ctx context.Context, cfg Config, logger log.Logger) (Client, error) {
	switch cfg.Provider {
	case ProviderGemini:
		return NewGemini(ctx, cfg, logger)
	case ProviderOllama:
		return NewOllama(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNotConfigured, cfg.Provider)
	}
}
