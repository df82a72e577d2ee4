// Package host defines the contract for the external collaborator the
// connection engine dispatches inbound requests and events to, plus a
// Router default implementation dispatching by method name.
package host

import (
	"context"

	"github.com/minghan/bond/pkg/protocol"
)

// Host is implemented by types that dispatch inbound requests and events by
// method name.
type Host interface {
	// DispatchRequest handles an inbound request and returns its response
	// payload, or an error to be reported back as an InternalServerError.
	DispatchRequest(ctx context.Context, method string, payload []byte, metrics *protocol.ConnectionMetrics) ([]byte, error)
	// DispatchEvent handles an inbound fire-and-forget event. Errors are
	// logged by the caller and otherwise have no observable effect — events
	// never produce a reply.
	DispatchEvent(ctx context.Context, method string, payload []byte, metrics *protocol.ConnectionMetrics) error
}

// RequestHandlerFunc adapts an ordinary function to a single method's
// request handler, in the style of strandapi/pkg/server/handler.go's
// HandlerFunc.
type RequestHandlerFunc func(ctx context.Context, payload []byte) ([]byte, error)

// EventHandlerFunc adapts an ordinary function to a single method's event
// handler.
type EventHandlerFunc func(ctx context.Context, payload []byte) error

// Router dispatches by method name to registered handlers. It implements
// Host. Unregistered request methods return an error that the engine
// converts to an InternalServerError reply; unregistered event methods are
// silently logged and dropped by the caller.
type Router struct {
	requests map[string]RequestHandlerFunc
	events   map[string]EventHandlerFunc
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{
		requests: make(map[string]RequestHandlerFunc),
		events:   make(map[string]EventHandlerFunc),
	}
}

// HandleRequest registers fn as the handler for request method name.
func (r *Router) HandleRequest(method string, fn RequestHandlerFunc) *Router {
	r.requests[method] = fn
	return r
}

// HandleEvent registers fn as the handler for event method name.
func (r *Router) HandleEvent(method string, fn EventHandlerFunc) *Router {
	r.events[method] = fn
	return r
}

// ErrMethodNotFound is returned by DispatchRequest when no handler is
// registered for the requested method.
type ErrMethodNotFound struct{ Method string }

func (e *ErrMethodNotFound) Error() string {
	return "host: no handler registered for method " + e.Method
}

// DispatchRequest implements Host.
func (r *Router) DispatchRequest(ctx context.Context, method string, payload []byte, metrics *protocol.ConnectionMetrics) ([]byte, error) {
	fn, ok := r.requests[method]
	if !ok {
		return nil, &ErrMethodNotFound{Method: method}
	}
	return fn(ctx, payload)
}

// DispatchEvent implements Host.
func (r *Router) DispatchEvent(ctx context.Context, method string, payload []byte, metrics *protocol.ConnectionMetrics) error {
	fn, ok := r.events[method]
	if !ok {
		return &ErrMethodNotFound{Method: method}
	}
	return fn(ctx, payload)
}
