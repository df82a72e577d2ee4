package engine

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/minghan/bond/pkg/correlator"
	"github.com/minghan/bond/pkg/epoxybuf"
	"github.com/minghan/bond/pkg/host"
	"github.com/minghan/bond/pkg/layers"
	"github.com/minghan/bond/pkg/metrics"
	"github.com/minghan/bond/pkg/protocol"
	"github.com/minghan/bond/pkg/socket"
	"github.com/minghan/bond/pkg/wire"
)

// ErrNotConnected is returned by RequestResponse and FireEvent when the
// Connection has not reached (or has left) the Connected state.
var ErrNotConnected = fmt.Errorf("engine: connection is not in the %s state", StateConnected)

// Connection drives one Epoxy connection's handshake, steady-state
// multiplexing, and teardown. Exactly one goroutine — the one Start
// launches — reads from the socket and mutates state; callers interact
// through RequestResponse, FireEvent, and Stop.
type Connection struct {
	role Role
	sock *socket.Socket
	corr *correlator.Correlator

	host       host.Host
	layerStack layers.Layer
	sink       metrics.Sink
	tracer     Tracer
	log        zerolog.Logger

	onConnected    func(ctx context.Context) *protocol.Error
	onDisconnected func(details *protocol.Error)

	shutdownTimeout     time.Duration
	dispatchConcurrency int

	stateMu sync.RWMutex
	state   State

	convCounter atomic.Int64

	startPromise *future
	stopPromise  *future
	stopSignal   chan struct{}
	stopOnce     sync.Once

	protocolErrorCode protocol.ProtocolErrorCode
	handshakeErr      *protocol.Error
	shutdownReason    protocol.ConnectionShutdownReason

	metricsRec *protocol.ConnectionMetrics

	sem chan struct{}
	wg  sync.WaitGroup
}

// New wraps conn as a Connection playing role, configured by opts. The
// returned Connection does nothing until Start is called.
func New(conn net.Conn, role Role, opts ...Option) *Connection {
	connectionID := metrics.NewConnectionID()
	local, remote := "", ""
	if a := conn.LocalAddr(); a != nil {
		local = a.String()
	}
	if a := conn.RemoteAddr(); a != nil {
		remote = a.String()
	}

	c := &Connection{
		role:                role,
		sock:                socket.New(conn),
		corr:                correlator.New(),
		layerStack:          layers.Nop{},
		sink:                metrics.NopSink{},
		tracer:              noopTracer{},
		log:                 zerolog.Nop(),
		shutdownTimeout:     defaultShutdownTimeout,
		dispatchConcurrency: defaultDispatchConcurrency,
		startPromise:        newFuture(),
		stopPromise:         newFuture(),
		stopSignal:          make(chan struct{}),
		metricsRec:          protocol.NewConnectionMetrics(connectionID, local, remote),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sem = make(chan struct{}, c.dispatchConcurrency)

	// Client allocates odd ids starting at 1; server allocates even ids
	// starting at 2. Both step by 2 via atomic fetch-and-add, so the first
	// Add(2) must land on 1 or 2 respectively.
	if role == RoleClient {
		c.convCounter.Store(-1)
	} else {
		c.convCounter.Store(0)
	}
	return c
}

// State reports the Connection's current state. Safe to call from any
// goroutine; only the engine goroutine ever mutates it.
func (c *Connection) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Connection) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
	c.log.Debug().Str("state", s.String()).Str("role", c.role.String()).Msg("connection state transition")
}

// Metrics returns a snapshot of the connection's ConnectionMetrics record.
// Fields other than ShutdownReason/DurationMillis are stable from
// construction; those two are only meaningful after Stop resolves.
func (c *Connection) Metrics() protocol.ConnectionMetrics {
	return *c.metricsRec
}

// nextConversationID allocates this side's next conversation id. A wrap
// past the signed-positive range is a fatal protocol error for the
// connection.
func (c *Connection) nextConversationID() (uint64, error) {
	v := c.convCounter.Add(2)
	if v < 0 {
		return 0, fmt.Errorf("engine: conversation id space exhausted")
	}
	return uint64(v), nil
}

// writeFrame serializes f and writes it to the socket inside the
// single-holder write mutex's critical section.
func (c *Connection) writeFrame(f *wire.Frame) error {
	c.sock.LockWrite()
	defer c.sock.Unlock()
	if c.sock.Closed() {
		return protocol.NewTransportError("socket already closed")
	}
	if err := wire.WriteFrame(c.sock.Conn(), f); err != nil {
		return protocol.NewTransportError(err.Error())
	}
	return nil
}

func buildPayloadFrame(headers *protocol.EpoxyHeaders, layerBlob, payload []byte) *wire.Frame {
	hbuf := epoxybuf.NewBuffer(64)
	headers.Encode(hbuf)

	framelets := make([]wire.Framelet, 0, 3)
	framelets = append(framelets, wire.Framelet{Type: uint16(protocol.FrameletEpoxyHeaders), Body: hbuf.Bytes()})
	if layerBlob != nil {
		framelets = append(framelets, wire.Framelet{Type: uint16(protocol.FrameletLayerData), Body: layerBlob})
	}
	framelets = append(framelets, wire.Framelet{Type: uint16(protocol.FrameletPayloadData), Body: payload})
	return &wire.Frame{Framelets: framelets}
}

// RequestResponse allocates a conversation-id, applies the outbound layer
// stack, writes a Request frame, and blocks until the matching response
// arrives, ctx is cancelled, or the connection tears down. Requires
// Connected.
func (c *Connection) RequestResponse(ctx context.Context, method string, payload []byte) ([]byte, error) {
	if c.State() != StateConnected {
		return nil, ErrNotConnected
	}

	ctx, endSpan := c.tracer.StartSpan(ctx, "epoxy.request_response."+method)
	var spanErr error
	defer func() { endSpan(spanErr) }()

	convID, err := c.nextConversationID()
	if err != nil {
		spanErr = err
		return nil, err
	}

	lc := layers.Context{ConversationID: convID, Method: method, Metrics: c.metricsRec}
	layerBlob, err := c.layerStack.OnSend(ctx, protocol.PayloadRequest, lc)
	if err != nil {
		spanErr = err
		return nil, err
	}

	headers := &protocol.EpoxyHeaders{ConversationID: convID, PayloadType: protocol.PayloadRequest, MethodName: method}
	frame := buildPayloadFrame(headers, layerBlob, payload)

	slot := c.corr.Add(convID)
	if err := c.writeFrame(frame); err != nil {
		c.corr.Complete(convID, correlator.Message{Err: err})
	}

	select {
	case res := <-slot.Chan():
		if res.Err != nil {
			spanErr = res.Err
			return nil, res.Err
		}
		return res.Payload, nil
	case <-ctx.Done():
		c.corr.Remove(convID)
		spanErr = ctx.Err()
		return nil, ctx.Err()
	}
}

// FireEvent allocates a conversation-id, applies the outbound layer stack,
// and writes an Event frame. It returns as soon as the frame is flushed;
// there is no response to await. Requires Connected.
func (c *Connection) FireEvent(ctx context.Context, method string, payload []byte) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}

	convID, err := c.nextConversationID()
	if err != nil {
		return err
	}

	lc := layers.Context{ConversationID: convID, Method: method, Metrics: c.metricsRec}
	layerBlob, err := c.layerStack.OnSend(ctx, protocol.PayloadEvent, lc)
	if err != nil {
		return err
	}

	headers := &protocol.EpoxyHeaders{ConversationID: convID, PayloadType: protocol.PayloadEvent, MethodName: method}
	return c.writeFrame(buildPayloadFrame(headers, layerBlob, payload))
}

// Start launches the engine goroutine and blocks until the handshake
// completes (state reaches Connected) or fails with a captured protocol
// error. The engine goroutine continues running steady-state and teardown
// in the background after Start returns.
func (c *Connection) Start(ctx context.Context) error {
	go c.run(ctx)
	return c.startPromise.wait()
}

// Stop signals the engine to shut down. Valid in any state; it returns once
// the connection has reached Disconnected. Safe to call more than once and
// from multiple goroutines concurrently.
func (c *Connection) Stop(context.Context) error {
	c.stopOnce.Do(func() {
		close(c.stopSignal)
		_ = c.sock.Shutdown()
	})
	return c.stopPromise.wait()
}
