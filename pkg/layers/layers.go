// Package layers defines an ordered pipeline of user transforms applied on
// send and receive per message type. The connection engine treats a Layer
// as two opaque hooks; it does not interpret layer data itself.
package layers

import (
	"context"

	"github.com/minghan/bond/pkg/epoxybuf"
	"github.com/minghan/bond/pkg/protocol"
)

// Context carries the per-message information a Layer may need: the
// conversation it belongs to, the method name (empty for responses), and
// the connection's metrics record.
type Context struct {
	ConversationID uint64
	Method         string
	Metrics        *protocol.ConnectionMetrics
}

// Layer is a single send/receive transform. OnSend returns a layer-data
// blob (or nil) to attach to the outbound frame, or an error that
// short-circuits the send: for requests the error becomes the
// locally-completed response, for events the send is simply abandoned.
// OnReceive inspects the inbound blob (nil if the frame carried no
// LayerData framelet) and may return an error that replaces the inbound
// message.
type Layer interface {
	OnSend(ctx context.Context, msgType protocol.PayloadType, lc Context) ([]byte, error)
	OnReceive(ctx context.Context, msgType protocol.PayloadType, lc Context, layerData []byte) error
}

// Chain composes multiple Layers into a single pipeline. On send, each
// layer's blob (if any) is collected and concatenated as a length-prefixed
// sequence; on receive the sequence is split back out and each layer sees
// only its own blob, preserving per-layer opacity.
type Chain struct {
	layers []Layer
}

// NewChain returns a Chain running layers in the given order.
func NewChain(layers ...Layer) *Chain {
	return &Chain{layers: layers}
}

// OnSend runs every layer's OnSend in order, stopping at the first error.
func (c *Chain) OnSend(ctx context.Context, msgType protocol.PayloadType, lc Context) ([]byte, error) {
	if len(c.layers) == 0 {
		return nil, nil
	}
	buf := epoxybuf.NewBuffer(64)
	any := false
	for _, l := range c.layers {
		blob, err := l.OnSend(ctx, msgType, lc)
		if err != nil {
			return nil, err
		}
		buf.WriteBytes(blob)
		if blob != nil {
			any = true
		}
	}
	if !any {
		return nil, nil
	}
	return buf.Bytes(), nil
}

// OnReceive splits layerData back into per-layer blobs and runs every
// layer's OnReceive in order, stopping at the first error.
func (c *Chain) OnReceive(ctx context.Context, msgType protocol.PayloadType, lc Context, layerData []byte) error {
	if len(c.layers) == 0 {
		return nil
	}
	r := epoxybuf.NewReader(layerData)
	for _, l := range c.layers {
		var blob []byte
		if layerData != nil && r.Remaining() > 0 {
			b, err := r.ReadBytes()
			if err != nil {
				return err
			}
			if len(b) > 0 {
				blob = b
			}
		}
		if err := l.OnReceive(ctx, msgType, lc, blob); err != nil {
			return err
		}
	}
	return nil
}

// Nop is a Layer that does nothing; it's the default when no layer stack is
// configured.
type Nop struct{}

func (Nop) OnSend(context.Context, protocol.PayloadType, Context) ([]byte, error) { return nil, nil }
func (Nop) OnReceive(context.Context, protocol.PayloadType, Context, []byte) error { return nil }
