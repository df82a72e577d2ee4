package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minghan/bond/pkg/classify"
	"github.com/minghan/bond/pkg/correlator"
	"github.com/minghan/bond/pkg/epoxybuf"
	"github.com/minghan/bond/pkg/layers"
	"github.com/minghan/bond/pkg/protocol"
	"github.com/minghan/bond/pkg/wire"
)

func layerContext(convID uint64, method string, m *protocol.ConnectionMetrics) layers.Context {
	return layers.Context{ConversationID: convID, Method: method, Metrics: m}
}

// steadyState runs the Connected receive loop until a frame ends the
// connection or the shutdown signal fires. It is the sole reader of the
// socket; dispatch hand-off runs on detached goroutines so the loop is
// never blocked by user code.
func (c *Connection) steadyState(ctx context.Context) {
	for {
		select {
		case <-c.stopSignal:
			c.transitionDisconnecting(nil)
			return
		default:
		}

		f, err := wire.Read(c.sock.Conn())
		if err != nil {
			select {
			case <-c.stopSignal:
				c.transitionDisconnecting(nil)
			default:
				if errors.Is(err, io.EOF) {
					c.transitionDisconnecting(nil)
				} else {
					c.transitionDisconnecting(err)
				}
			}
			return
		}

		d := classify.Classify(f)
		switch d.Kind {
		case classify.DeliverRequest:
			c.handleInboundRequest(ctx, d)
		case classify.DeliverResponse:
			c.handleInboundResponse(ctx, d)
		case classify.DeliverEvent:
			c.handleInboundEvent(ctx, d)
		case classify.SendProtocolError:
			c.sendProtocolErrorAndDisconnect(d.Code)
			return
		case classify.HandleProtocolError, classify.HangUp:
			c.transitionDisconnecting(nil)
			return
		default:
			c.sendProtocolErrorAndDisconnect(protocol.CodeInternalError)
			return
		}
	}
}

func (c *Connection) handleInboundRequest(ctx context.Context, d classify.Disposition) {
	if !d.Headers.IsOK() {
		c.sendProtocolErrorAndDisconnect(protocol.CodeProtocolViolated)
		return
	}
	convID := d.Headers.ConversationID
	method := d.Headers.MethodName

	lc := layerContext(convID, method, c.metricsRec)
	if err := c.layerStack.OnReceive(ctx, protocol.PayloadRequest, lc, d.LayerData); err != nil {
		c.respondError(convID, err)
		return
	}

	c.sem <- struct{}{}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() { <-c.sem }()
		c.dispatchRequest(ctx, convID, method, d.Payload)
	}()
}

func (c *Connection) dispatchRequest(ctx context.Context, convID uint64, method string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Str("method", method).Msg("dispatch request panicked")
			c.respondError(convID, protocol.NewInternalServerError(recoverMessage(r)))
		}
	}()

	if c.host == nil {
		c.respondError(convID, protocol.NewInternalServerError("no host registered"))
		return
	}
	resp, err := c.host.DispatchRequest(ctx, method, payload, c.metricsRec)
	if err != nil {
		c.respondError(convID, protocol.NewInternalServerError(err.Error()))
		return
	}
	c.respondOK(convID, resp)
}

func (c *Connection) handleInboundEvent(ctx context.Context, d classify.Disposition) {
	if !d.Headers.IsOK() {
		c.sendProtocolErrorAndDisconnect(protocol.CodeProtocolViolated)
		return
	}
	method := d.Headers.MethodName

	lc := layerContext(d.Headers.ConversationID, method, c.metricsRec)
	if err := c.layerStack.OnReceive(ctx, protocol.PayloadEvent, lc, d.LayerData); err != nil {
		c.log.Warn().Err(err).Str("method", method).Msg("event dropped by layer stack")
		return
	}

	c.sem <- struct{}{}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() { <-c.sem }()
		c.dispatchEvent(ctx, method, d.Payload)
	}()
}

func (c *Connection) dispatchEvent(ctx context.Context, method string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Str("method", method).Msg("dispatch event panicked")
		}
	}()
	if c.host == nil {
		return
	}
	if err := c.host.DispatchEvent(ctx, method, payload, c.metricsRec); err != nil {
		c.log.Warn().Err(err).Str("method", method).Msg("event handler returned error")
	}
}

func (c *Connection) handleInboundResponse(ctx context.Context, d classify.Disposition) {
	convID := d.Headers.ConversationID
	lc := layerContext(convID, "", c.metricsRec)

	var msg correlator.Message
	if err := c.layerStack.OnReceive(ctx, protocol.PayloadResponse, lc, d.LayerData); err != nil {
		msg = correlator.Message{Err: err}
	} else if d.Headers.IsOK() {
		msg = correlator.Message{Payload: d.Payload}
	} else {
		rec := &protocol.Error{}
		if decErr := rec.Decode(epoxybuf.NewReader(d.Payload)); decErr != nil {
			rec = &protocol.Error{Code: d.Headers.ErrorCode, Message: "response carried an unparseable error payload"}
		}
		msg = correlator.Message{Err: rec}
	}

	if !c.corr.Complete(convID, msg) {
		c.log.Warn().Uint64("conversation_id", convID).Msg("unmatched response dropped")
	}
}

// respondOK builds and writes a successful Response frame for convID.
func (c *Connection) respondOK(convID uint64, payload []byte) {
	headers := &protocol.EpoxyHeaders{ConversationID: convID, PayloadType: protocol.PayloadResponse}
	if err := c.writeFrame(buildPayloadFrame(headers, nil, payload)); err != nil {
		c.log.Warn().Err(err).Uint64("conversation_id", convID).Msg("failed to write response frame")
	}
}

// respondError builds and writes a failing Response frame carrying err's
// Error-record encoding for convID.
func (c *Connection) respondError(convID uint64, err error) {
	rec := toErrorRecord(err)
	buf := epoxybuf.NewBuffer(64)
	rec.Encode(buf)
	headers := &protocol.EpoxyHeaders{ConversationID: convID, PayloadType: protocol.PayloadResponse, ErrorCode: rec.Code}
	if werr := c.writeFrame(buildPayloadFrame(headers, nil, buf.Bytes())); werr != nil {
		c.log.Warn().Err(werr).Uint64("conversation_id", convID).Msg("failed to write error response frame")
	}
}

func toErrorRecord(err error) *protocol.Error {
	switch e := err.(type) {
	case *protocol.Error:
		return e
	case *protocol.InternalServerError:
		return &e.Err
	default:
		return &protocol.NewInternalServerError(err.Error()).Err
	}
}

func recoverMessage(r interface{}) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", r)
}
