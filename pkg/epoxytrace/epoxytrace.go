// Package epoxytrace wires the connection engine's span hooks to
// OpenTelemetry.
package epoxytrace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "epoxy"

// Config selects the exporter backing a Tracer.
type Config struct {
	// Enabled turns tracing on. When false, Setup installs a noop
	// TracerProvider and StartSpan calls are zero overhead.
	Enabled bool
	// Exporter names the span exporter: "stdout" or "noop" (default).
	Exporter string
}

// Setup installs a global TracerProvider per cfg and returns a shutdown
// function the caller must run before exiting.
func Setup(cfg Config) (func(context.Context) error, error) {
	noopShutdown := func(context.Context) error { return nil }

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return noopShutdown, nil
	}

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("epoxytrace: create stdout exporter: %w", err)
		}
	case "noop", "":
		otel.SetTracerProvider(noop.NewTracerProvider())
		return noopShutdown, nil
	default:
		return nil, fmt.Errorf("epoxytrace: unsupported exporter %q", cfg.Exporter)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer adapts the global OpenTelemetry TracerProvider to the connection
// engine's Tracer interface: StartSpan returns a context carrying the new
// span and a closure that ends it, recording err (if any) as the span's
// status.
type Tracer struct{}

// New returns a Tracer reading spans from whatever TracerProvider Setup (or
// the application) last installed globally.
func New() Tracer {
	return Tracer{}
}

// StartSpan implements engine.Tracer.
func (Tracer) StartSpan(ctx context.Context, name string) (context.Context, func(err error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

var _ interface {
	StartSpan(context.Context, string) (context.Context, func(error))
} = Tracer{}
