// Package classify maps a decoded wire.Frame to a Disposition, extracting
// headers, payload, and layer-data slices along the way. It performs no
// I/O and mutates no state.
package classify

import (
	"github.com/minghan/bond/pkg/epoxybuf"
	"github.com/minghan/bond/pkg/protocol"
	"github.com/minghan/bond/pkg/wire"
)

// Kind enumerates the classifier's possible verdicts.
type Kind int

const (
	// ProcessConfig: the frame is a single EpoxyConfig framelet.
	ProcessConfig Kind = iota
	// DeliverRequest: a well-formed request frame.
	DeliverRequest
	// DeliverResponse: a well-formed response frame.
	DeliverResponse
	// DeliverEvent: a well-formed event frame.
	DeliverEvent
	// SendProtocolError: the frame is malformed; send ProtocolError(Code)
	// and transition to SendProtocolError.
	SendProtocolError
	// HandleProtocolError: the frame is a peer-reported ProtocolError we
	// should act on (transition to Disconnecting, no reply).
	HandleProtocolError
	// HangUp: the frame is a ProtocolError that fails to decode or that
	// carries code OK — in either case, disconnect without replying. Every
	// other decoded code, including values outside the known enumeration,
	// classifies as HandleProtocolError instead.
	HangUp
)

// Disposition is the classifier's verdict on a decoded frame, plus whatever
// it extracted along the way.
type Disposition struct {
	Kind Kind

	// Valid when Kind is DeliverRequest/DeliverResponse/DeliverEvent.
	Headers   *protocol.EpoxyHeaders
	Payload   []byte
	LayerData []byte // nil if the frame had no LayerData framelet

	// Valid when Kind is SendProtocolError.
	Code protocol.ProtocolErrorCode

	// Valid when Kind is HandleProtocolError.
	PeerError *protocol.ProtocolError
}

func malformed() Disposition {
	return Disposition{Kind: SendProtocolError, Code: protocol.CodeMalformedData}
}

// Classify inspects f's framelet sequence against the recognized shapes and
// returns a Disposition. It never performs I/O.
func Classify(f *wire.Frame) Disposition {
	if len(f.Framelets) == 0 {
		return malformed()
	}

	if len(f.Framelets) == 1 {
		switch protocol.FrameletType(f.Framelets[0].Type) {
		case protocol.FrameletEpoxyConfig:
			return Disposition{Kind: ProcessConfig}
		case protocol.FrameletProtocolErr:
			return classifyProtocolError(f.Framelets[0].Body)
		}
	}

	return classifyPayloadFrame(f.Framelets)
}

func classifyProtocolError(body []byte) Disposition {
	pe := &protocol.ProtocolError{}
	if err := pe.Decode(epoxybuf.NewReader(body)); err != nil {
		return Disposition{Kind: HangUp}
	}
	if pe.Code == protocol.CodeOK {
		return Disposition{Kind: HangUp}
	}
	// A peer-reported protocol error is remembered and acted on, but never
	// replied to.
	return Disposition{Kind: HandleProtocolError, PeerError: pe}
}

func classifyPayloadFrame(framelets []wire.Framelet) Disposition {
	var headersBody, payloadBody, layerBody []byte
	var haveHeaders, havePayload, haveLayer bool

	if protocol.FrameletType(framelets[0].Type) != protocol.FrameletEpoxyHeaders {
		return malformed()
	}

	for _, fl := range framelets {
		t := protocol.FrameletType(fl.Type)
		if !t.Known() {
			return malformed()
		}
		switch t {
		case protocol.FrameletEpoxyHeaders:
			if haveHeaders {
				return malformed()
			}
			haveHeaders, headersBody = true, fl.Body
		case protocol.FrameletPayloadData:
			if havePayload {
				return malformed()
			}
			havePayload, payloadBody = true, fl.Body
		case protocol.FrameletLayerData:
			if haveLayer {
				return malformed()
			}
			haveLayer, layerBody = true, fl.Body
		default:
			return malformed()
		}
	}

	if !haveHeaders || !havePayload {
		return malformed()
	}

	headers := &protocol.EpoxyHeaders{}
	if err := headers.Decode(epoxybuf.NewReader(headersBody)); err != nil {
		return malformed()
	}

	var layer []byte
	if haveLayer {
		layer = layerBody
	}

	d := Disposition{Headers: headers, Payload: payloadBody, LayerData: layer}
	switch headers.PayloadType {
	case protocol.PayloadRequest:
		d.Kind = DeliverRequest
	case protocol.PayloadResponse:
		d.Kind = DeliverResponse
	case protocol.PayloadEvent:
		d.Kind = DeliverEvent
	default:
		return malformed()
	}
	return d
}
