// Package protocol defines the Epoxy wire types: framelet tags, the
// EpoxyHeaders/EpoxyConfig/ProtocolError records, protocol error codes,
// connection shutdown reasons, and the polymorphic error records the
// connection engine constructs at well-defined points.
package protocol

import "fmt"

// FrameletType identifies the kind of a framelet's body. Values are
// wire-exact and must match peers.
type FrameletType uint16

const (
	FrameletEpoxyHeaders FrameletType = 0x454D // "EM"
	FrameletLayerData    FrameletType = 0x4C59 // "LY"
	FrameletPayloadData  FrameletType = 0x5044 // "PD"
	FrameletEpoxyConfig  FrameletType = 0x434F // "CO"
	FrameletProtocolErr  FrameletType = 0x4550 // "EP"
)

// frameletNames maps a FrameletType to a human-readable name for logging.
var frameletNames = map[FrameletType]string{
	FrameletEpoxyHeaders: "EpoxyHeaders",
	FrameletLayerData:    "LayerData",
	FrameletPayloadData:  "PayloadData",
	FrameletEpoxyConfig:  "EpoxyConfig",
	FrameletProtocolErr:  "ProtocolError",
}

// String returns the framelet type's name, or a hex fallback for unknown tags.
func (t FrameletType) String() string {
	if name, ok := frameletNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%04X)", uint16(t))
}

// Known reports whether t is one of the five wire-exact framelet tags.
func (t FrameletType) Known() bool {
	_, ok := frameletNames[t]
	return ok
}

// PayloadType distinguishes the three kinds of EpoxyHeaders-bearing frames.
type PayloadType uint8

const (
	PayloadRequest  PayloadType = 0
	PayloadResponse PayloadType = 1
	PayloadEvent    PayloadType = 2
)

func (t PayloadType) String() string {
	switch t {
	case PayloadRequest:
		return "Request"
	case PayloadResponse:
		return "Response"
	case PayloadEvent:
		return "Event"
	default:
		return "Unknown"
	}
}
