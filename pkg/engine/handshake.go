package engine

import (
	"context"
	"errors"
	"io"

	"github.com/minghan/bond/pkg/classify"
	"github.com/minghan/bond/pkg/epoxybuf"
	"github.com/minghan/bond/pkg/protocol"
	"github.com/minghan/bond/pkg/wire"
)

// run drives the Connection from Created through the handshake and, on
// success, into the steady-state receive loop. It is the only goroutine
// that ever mutates state, reads the socket, or captures handshake errors.
func (c *Connection) run(ctx context.Context) {
	ctx, endSpan := c.tracer.StartSpan(ctx, "epoxy.handshake")

	switch c.role {
	case RoleClient:
		c.setState(StateClientSendConfig)
		if err := c.writeConfig(); err != nil {
			endSpan(err)
			c.transitionDisconnecting(err)
			return
		}
		c.setState(StateClientExpectConfig)
		if !c.expectConfig() {
			endSpan(errOrNil(c.handshakeErr))
			return
		}
	case RoleServer:
		var rejectErr *protocol.Error
		if c.onConnected != nil {
			rejectErr = c.onConnected(ctx)
		}
		if rejectErr != nil {
			endSpan(rejectErr)
			c.rejectAndDisconnect(protocol.CodeConnectionRejected, rejectErr)
			return
		}
		c.setState(StateServerExpectConfig)
		if !c.expectConfig() {
			endSpan(errOrNil(c.handshakeErr))
			return
		}
		c.setState(StateServerSendConfig)
		if err := c.writeConfig(); err != nil {
			endSpan(err)
			c.transitionDisconnecting(err)
			return
		}
	}

	// The state write happens-before the promise resolution, so observers
	// woken by the resolved start() promise never race past the state guard.
	c.setState(StateConnected)
	endSpan(nil)
	c.startPromise.resolve(nil)

	c.steadyState(ctx)
}

func (c *Connection) writeConfig() error {
	cfg := &protocol.EpoxyConfig{}
	buf := epoxybuf.NewBuffer(0)
	cfg.Encode(buf)
	return c.writeFrame(&wire.Frame{Framelets: []wire.Framelet{
		{Type: uint16(protocol.FrameletEpoxyConfig), Body: buf.Bytes()},
	}})
}

// expectConfig reads and classifies one frame while in a *ExpectConfig
// state. It returns true when the frame was a valid EpoxyConfig (the caller
// advances state); any other outcome tears the connection down and returns
// false.
func (c *Connection) expectConfig() bool {
	f, err := wire.Read(c.sock.Conn())
	if err != nil {
		if errors.Is(err, io.EOF) {
			c.transitionDisconnecting(nil)
		} else {
			c.transitionDisconnecting(err)
		}
		return false
	}

	d := classify.Classify(f)
	switch d.Kind {
	case classify.ProcessConfig:
		return true
	case classify.HandleProtocolError:
		c.handshakeErr = errorFromPeerProtocolError(d.PeerError)
		c.transitionDisconnecting(nil)
		return false
	case classify.HangUp:
		c.transitionDisconnecting(nil)
		return false
	default:
		c.sendProtocolErrorAndDisconnect(protocol.CodeProtocolViolated)
		return false
	}
}

// rejectAndDisconnect sends a ProtocolError carrying details (the server's
// own on_connected rejection) and tears down, remembering details as this
// side's own handshake failure too — the rejecting server never reached
// Connected either.
func (c *Connection) rejectAndDisconnect(code protocol.ProtocolErrorCode, details *protocol.Error) {
	c.setState(StateSendProtocolError)
	c.protocolErrorCode = code
	c.handshakeErr = details

	pe := &protocol.ProtocolError{Code: code, Details: details}
	buf := epoxybuf.NewBuffer(64)
	pe.Encode(buf)
	frame := &wire.Frame{Framelets: []wire.Framelet{
		{Type: uint16(protocol.FrameletProtocolErr), Body: buf.Bytes()},
	}}
	if err := c.writeFrame(frame); err != nil {
		c.log.Warn().Err(err).Msg("best-effort protocol error write failed")
	}
	c.transitionDisconnecting(nil)
}

// sendProtocolErrorAndDisconnect sends a bare ProtocolError (no details) and
// tears down, used for locally-detected violations that carry no Error
// record.
func (c *Connection) sendProtocolErrorAndDisconnect(code protocol.ProtocolErrorCode) {
	c.setState(StateSendProtocolError)
	c.protocolErrorCode = code

	pe := &protocol.ProtocolError{Code: code}
	buf := epoxybuf.NewBuffer(16)
	pe.Encode(buf)
	frame := &wire.Frame{Framelets: []wire.Framelet{
		{Type: uint16(protocol.FrameletProtocolErr), Body: buf.Bytes()},
	}}
	if err := c.writeFrame(frame); err != nil {
		c.log.Warn().Err(err).Msg("best-effort protocol error write failed")
	}
	c.transitionDisconnecting(nil)
}

func errOrNil(e *protocol.Error) error {
	if e == nil {
		return nil
	}
	return e
}

func errorFromPeerProtocolError(pe *protocol.ProtocolError) *protocol.Error {
	if pe.Details != nil {
		return pe.Details
	}
	return &protocol.Error{Code: int32(pe.Code), Message: pe.Code.String()}
}
