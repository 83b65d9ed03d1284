// Package observability provides OpenTelemetry tracing over OTLP/HTTP.
//
// Tracing is opt-in: it activates only when an OTLP endpoint is
// configured (OTEL_EXPORTER_OTLP_ENDPOINT or config file). The exporter
// targets a local collector or agent, which handles authentication and
// forwarding.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/dosiblog/gateway/internal/log"
)

// Config for the trace exporter.
type Config struct {
	// Endpoint is the OTLP/HTTP collector endpoint, host:port. Empty
	// disables tracing.
	Endpoint string
	// ServiceName is the service name shown in the APM backend.
	ServiceName string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
}

// noopShutdown is returned when tracing is disabled or setup fails.
func noopShutdown(context.Context) error { return nil }

// Setup installs a global tracer provider exporting to the configured
// OTLP endpoint. It returns a shutdown function that flushes pending
// spans.
//
// Setup never fails the application over tracing: an unreachable or
// misconfigured exporter logs a warning and leaves tracing disabled.
func Setup(ctx context.Context, cfg Config, logger log.Logger) (shutdown func(context.Context) error, err error) {
	if cfg.Endpoint == "" {
		return noopShutdown, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		logger.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return noopShutdown, nil
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		attribute.String("deployment.environment", cfg.Environment),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)),
	)
	otel.SetTracerProvider(provider)

	logger.Debug("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)
	return provider.Shutdown, nil
}
