package epoxytrace

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetupDisabledInstallsNoop(t *testing.T) {
	shutdown, err := Setup(Config{Enabled: false})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupUnsupportedExporter(t *testing.T) {
	_, err := Setup(Config{Enabled: true, Exporter: "zipkin"})
	if err == nil {
		t.Fatal("expected an error for an unsupported exporter")
	}
}

func TestStartSpanEndsWithOKStatusOnSuccess(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	tr := New()
	_, end := tr.StartSpan(context.Background(), "epoxy.handshake")
	end(nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d ended spans, want 1", len(spans))
	}
	if spans[0].Name() != "epoxy.handshake" {
		t.Errorf("span name = %q, want epoxy.handshake", spans[0].Name())
	}
}

func TestStartSpanRecordsErrorOnFailure(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	tr := New()
	_, end := tr.StartSpan(context.Background(), "epoxy.request_response.Echo")
	end(errors.New("boom"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d ended spans, want 1", len(spans))
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected the span to carry a recorded error event")
	}
}
