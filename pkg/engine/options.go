package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/minghan/bond/pkg/host"
	"github.com/minghan/bond/pkg/layers"
	"github.com/minghan/bond/pkg/metrics"
	"github.com/minghan/bond/pkg/protocol"
)

// defaultShutdownTimeout bounds how long teardown waits for in-flight
// dispatch goroutines to drain before proceeding to Disconnected anyway,
// in the style of strandapi/pkg/server/server.go's ShutdownTimeout.
const defaultShutdownTimeout = 5 * time.Second

// defaultDispatchConcurrency bounds the number of concurrently running
// dispatch goroutines per connection.
const defaultDispatchConcurrency = 256

// Tracer starts a span named name and returns a context carrying it plus a
// function that ends the span, recording err (nil for success). Connection
// calls StartSpan around the handshake and around each RequestResponse;
// pkg/epoxytrace provides an OpenTelemetry-backed implementation.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, func(err error))
}

type noopTracer struct{}

func (noopTracer) StartSpan(ctx context.Context, _ string) (context.Context, func(error)) {
	return ctx, func(error) {}
}

// Option configures a Connection at construction, in the ServerOption /
// client.Option functional-options idiom this module is built on.
type Option func(*Connection)

// WithLogger sets the logger every state transition, protocol violation,
// unmatched response, and dispatch failure is logged through.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Connection) { c.log = log }
}

// WithHost registers the service host inbound requests and events dispatch
// to. The zero value (no WithHost) rejects every inbound request and event.
func WithHost(h host.Host) Option {
	return func(c *Connection) { c.host = h }
}

// WithLayerStack registers the layer-stack pipeline applied on every send
// and receive. Defaults to layers.Nop{}.
func WithLayerStack(l layers.Layer) Option {
	return func(c *Connection) { c.layerStack = l }
}

// WithMetricsSink registers where the connection's ConnectionMetrics record
// is emitted exactly once, at teardown. Defaults to metrics.NopSink{}.
func WithMetricsSink(sink metrics.Sink) Option {
	return func(c *Connection) { c.sink = sink }
}

// WithTracer registers a Tracer used to span the handshake and each
// RequestResponse call. Defaults to a no-op tracer.
func WithTracer(t Tracer) Option {
	return func(c *Connection) { c.tracer = t }
}

// WithOnConnected registers the server-role listener hook invoked during
// the Created step; a non-nil return synchronously rejects the incoming
// connection with CONNECTION_REJECTED. Ignored for client-role connections.
func WithOnConnected(fn func(ctx context.Context) *protocol.Error) Option {
	return func(c *Connection) { c.onConnected = fn }
}

// WithOnDisconnected registers the server-role listener hook invoked during
// Disconnecting, with the captured handshake error details if any. Ignored
// for client-role connections.
func WithOnDisconnected(fn func(details *protocol.Error)) Option {
	return func(c *Connection) { c.onDisconnected = fn }
}

// WithShutdownTimeout bounds how long teardown waits for in-flight dispatch
// goroutines to finish before proceeding to Disconnected regardless.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Connection) { c.shutdownTimeout = d }
}

// WithDispatchConcurrency bounds the number of inbound requests/events
// dispatched concurrently on this connection.
func WithDispatchConcurrency(n int) Option {
	return func(c *Connection) { c.dispatchConcurrency = n }
}
