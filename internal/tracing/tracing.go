/*
Package tracing wraps the dispatcher in an OpenTelemetry HTTP span,
following the "register an otelhttp.NewHandler wrap around the router"
pattern. When tracing is disabled, Init leaves the default no-op tracer
provider in place, so Wrap is always safe to apply and costs little.
*/
package tracing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"
)

// Config describes whether and where to export spans.
type Config struct {
	Enabled bool
	// Endpoint is the OTLP/HTTP collector address, e.g. "localhost:4318".
	Endpoint    string
	ServiceName string
}

// ShutdownFunc is returned by Init so the caller can flush the exporter on
// graceful shutdown; it is a no-op when tracing is disabled.
type ShutdownFunc func(context.Context) error

// Init installs a global TracerProvider per cfg and returns a shutdown
// hook. When cfg.Enabled is false, the SDK's default no-op provider stays
// installed and the returned shutdown hook is a no-op.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("tracing: build exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// Wrap instruments h with an otelhttp span named label. Cheap even when
// tracing is disabled, since the installed provider is then a no-op.
func Wrap(h http.Handler, label string) http.Handler {
	return otelhttp.NewHandler(h, label)
}
