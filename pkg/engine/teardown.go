package engine

import (
	"time"

	"github.com/minghan/bond/pkg/protocol"
)

// transitionDisconnecting runs the full teardown sequence: socket shutdown,
// the server-role on_disconnected hook, correlator fan-out-failure, and a
// bounded drain of in-flight dispatch goroutines, before the final
// transition to Disconnected. cause is the I/O error that triggered
// teardown, if any (nil for a clean EOF or a voluntary Stop).
func (c *Connection) transitionDisconnecting(cause error) {
	c.setState(StateDisconnecting)
	c.shutdownReason = c.determineShutdownReason(cause)
	c.log.Info().
		Str("shutdown_reason", c.shutdownReason.String()).
		Err(cause).
		Msg("connection disconnecting")

	_ = c.sock.Shutdown()

	if c.role == RoleServer && c.onDisconnected != nil {
		c.onDisconnected(c.handshakeErr)
	}

	c.corr.Shutdown()
	c.drainDispatch()

	c.setState(StateDisconnected)
	c.finish()
}

func (c *Connection) drainDispatch() {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.shutdownTimeout):
		c.log.Warn().Msg("shutdown timeout exceeded waiting for in-flight dispatch goroutines")
	}
}

// finish stamps and emits this connection's ConnectionMetrics exactly once,
// then resolves both the start() and stop() promises. start() resolves with
// an error whenever a handshake error was captured (this side never reached
// Connected); otherwise it resolves successfully — a no-op when it was
// already resolved at the Connected transition, and a nil result for a
// handshake that ended by EOF, a transport error, or a locally detected
// violation without a captured handshake error.
func (c *Connection) finish() {
	c.metricsRec.ShutdownReason = c.shutdownReason
	c.metricsRec.StampDuration()
	c.sink.Emit(*c.metricsRec)

	c.startPromise.resolve(errOrNil(c.handshakeErr))
	c.stopPromise.resolve(nil)
}

// determineShutdownReason maps the captured protocol error code, handshake
// error, and I/O cause to the fixed ConnectionShutdownReason enumeration.
// CONNECTION_REJECTED is recorded as ServerGraceful: it is a deliberate
// server-side decision, not a protocol violation by either peer.
func (c *Connection) determineShutdownReason(cause error) protocol.ConnectionShutdownReason {
	switch c.protocolErrorCode {
	case protocol.CodeMalformedData, protocol.CodeProtocolViolated, protocol.CodeConversationIDUnknown:
		return protocol.ShutdownClientProtocolError
	case protocol.CodeInternalError:
		return protocol.ShutdownBondInternalError
	case protocol.CodeConnectionRejected:
		return protocol.ShutdownServerGraceful
	}
	if c.handshakeErr != nil {
		return protocol.ShutdownClientProtocolError
	}
	if cause != nil {
		return protocol.ShutdownNetworkError
	}
	if c.role == RoleClient {
		return protocol.ShutdownClientGraceful
	}
	return protocol.ShutdownServerGraceful
}
