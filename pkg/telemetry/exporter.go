package telemetry

import (
	"context"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ExporterConfig points a session's spans at an OTLP/HTTP collector,
// grounded on the teacher's pkg/observability/mlflow tracker but
// generalized: a fuzz run's spans belong on whatever collector the
// operator already runs (Jaeger, Tempo, an OTLP gateway), not a
// hardcoded MLflow tracking server.
type ExporterConfig struct {
	// CollectorURL is the OTLP/HTTP trace endpoint, e.g.
	// "http://localhost:4318".
	CollectorURL string

	// ServiceName labels every exported span's resource. Defaults to
	// "mcp-fuzzer".
	ServiceName string

	// SessionID, if set, is attached to every span as a
	// "fuzzer.session_id" resource attribute so traces from one run are
	// queryable as a group.
	SessionID string

	Insecure bool
	Headers  map[string]string
}

// Exporter owns the OTLP exporter and TracerProvider for one session's
// lifetime; Shutdown flushes pending spans before the process exits.
type Exporter struct {
	provider *sdktrace.TracerProvider
	exporter *otlptrace.Exporter
}

// NewExporter builds an OTLP/HTTP exporter for CollectorURL's host and
// installs a batching TracerProvider as the global provider. The returned
// Exporter's Tracer is suitable for Settings.WithTracer.
func NewExporter(ctx context.Context, cfg ExporterConfig) (*Exporter, error) {
	if cfg.CollectorURL == "" {
		return nil, fmt.Errorf("telemetry: CollectorURL is required")
	}
	parsed, err := url.Parse(cfg.CollectorURL)
	if err != nil {
		return nil, fmt.Errorf("telemetry: invalid CollectorURL: %w", err)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "mcp-fuzzer"
	}

	endpoint := parsed.Host
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithURLPath("/v1/traces"),
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create OTLP exporter: %w", err)
	}

	attrs := []attribute.KeyValue{attribute.String("service.name", cfg.ServiceName)}
	if cfg.SessionID != "" {
		attrs = append(attrs, attribute.String("fuzzer.session_id", cfg.SessionID))
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes("", attrs...))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return &Exporter{provider: provider, exporter: exporter}, nil
}

// Tracer returns a tracer bound to this exporter's provider.
func (e *Exporter) Tracer() trace.Tracer {
	return e.provider.Tracer(TracerName)
}

// Shutdown flushes pending spans and closes the exporter connection.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if e.provider == nil {
		return nil
	}
	if err := e.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutdown tracer provider: %w", err)
	}
	return nil
}
