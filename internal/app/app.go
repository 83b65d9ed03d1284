// Package app assembles the application from its components.
//
// Setup wires configuration, logging, tracing, the database pool, the
// model client, the tool broker, and the chat gateway into a single App
// container. Call Close to release everything in reverse order.
package app

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dosiblog/gateway/internal/config"
	"github.com/dosiblog/gateway/internal/gateway"
	"github.com/dosiblog/gateway/internal/knowledge"
	"github.com/dosiblog/gateway/internal/llm"
	"github.com/dosiblog/gateway/internal/log"
)

// App is the assembled application.
type App struct {
	Config  *config.Config
	Logger  log.Logger
	Pool    *pgxpool.Pool // nil when no database is configured
	Model   *llm.Switcher
	Store   *knowledge.Store // nil when no database is configured
	Gateway *gateway.Gateway

	// ProviderStore administers MCP provider descriptors and feeds the
	// gateway's per-request catalog.
	ProviderStore *config.ProviderStore

	otelShutdown func(context.Context) error
}

// Close releases resources in reverse initialization order.
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Debug("database pool closed")
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
