package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/genai"

	"github.com/dosiblog/gateway/db"
	"github.com/dosiblog/gateway/internal/agent"
	"github.com/dosiblog/gateway/internal/broker"
	"github.com/dosiblog/gateway/internal/config"
	"github.com/dosiblog/gateway/internal/gateway"
	"github.com/dosiblog/gateway/internal/history"
	"github.com/dosiblog/gateway/internal/knowledge"
	"github.com/dosiblog/gateway/internal/llm"
	"github.com/dosiblog/gateway/internal/local"
	"github.com/dosiblog/gateway/internal/log"
	"github.com/dosiblog/gateway/internal/observability"
	"github.com/dosiblog/gateway/internal/tools"
)

// Setup initializes the application. On failure it releases whatever was
// already initialized before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(ctx); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.otelShutdown = shutdown

	model, err := llm.NewSwitcher(ctx, llm.Config{
		Provider:    cfg.Provider,
		Model:       cfg.ModelName,
		APIKey:      cfg.GeminiAPIKey,
		OllamaHost:  cfg.OllamaHost,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}
	a.Model = model

	store, pool, err := provideKnowledge(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.Pool = pool

	var searcher tools.Searcher
	if store != nil {
		searcher = store
	}

	loop, err := agent.New(model, logger, agent.Config{
		SystemPrompt: gateway.DefaultSystemPrompt,
		MaxToolTurns: cfg.MaxToolTurns,
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent loop: %w", err)
	}

	a.ProviderStore = config.NewProviderStore(cfg.ProvidersFile, logger)

	gw, err := gateway.New(gateway.Deps{
		Broker:     broker.New(logger, local.NewRegistry()),
		Loop:       loop,
		Model:      model,
		History:    history.NewStore(),
		Providers:  a.ProviderStore,
		LocalTools: []broker.Tool{tools.NewRetrieval(searcher, logger)},
		Searcher:   searcher,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gateway: %w", err)
	}
	a.Gateway = gw

	return a, nil
}

// Pool tuning for a small API server.
const (
	poolMaxConns        = 10
	poolMinConns        = 2
	poolMaxConnLifetime = 30 * time.Minute
	poolMaxConnIdleTime = 5 * time.Minute
	poolPingTimeout     = 5 * time.Second
)

// provideKnowledge runs migrations, opens the connection pool, and seeds
// the knowledge store. The knowledge base is optional: without a database
// URL or a Gemini API key for embeddings it stays disabled and rag mode
// degrades gracefully.
func provideKnowledge(ctx context.Context, cfg *config.Config, logger log.Logger) (*knowledge.Store, *pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("no database configured, knowledge base disabled")
		return nil, nil, nil
	}
	if cfg.GeminiAPIKey == "" {
		logger.Warn("no gemini api key for embeddings, knowledge base disabled")
		return nil, nil, nil
	}

	if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = poolMaxConns
	poolCfg.MinConns = poolMinConns
	poolCfg.MaxConnLifetime = poolMaxConnLifetime
	poolCfg.MaxConnIdleTime = poolMaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, poolPingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("creating embedding client: %w", err)
	}
	embedder := knowledge.NewGeminiEmbedder(client, cfg.EmbedderModel)

	store, err := knowledge.NewStore(pool, embedder, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	if err := store.Seed(ctx); err != nil {
		logger.Warn("seeding knowledge base failed", "error", err)
	}

	return store, pool, nil
}
