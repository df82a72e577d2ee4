package protocol

import "github.com/minghan/bond/pkg/epoxybuf"

// EpoxyHeaders is the fixed header carried by request, response, and event
// frames. ConversationID correlates a response with its request; MethodName
// is empty for responses. ErrorCode of OK (0) means the payload is a user
// message; any other value means the payload is an Error record.
//
// Wire layout:
//
//	[uint64] ConversationID
//	[uint8]  PayloadType
//	[string] MethodName
//	[int32]  ErrorCode
type EpoxyHeaders struct {
	ConversationID uint64
	PayloadType    PayloadType
	MethodName     string
	ErrorCode      int32
}

// Encode serializes h into buf using the epoxybuf wire format.
func (h *EpoxyHeaders) Encode(buf *epoxybuf.Buffer) {
	buf.WriteUint64(h.ConversationID)
	buf.WriteUint8(uint8(h.PayloadType))
	buf.WriteString(h.MethodName)
	buf.WriteInt32(h.ErrorCode)
}

// Decode reads an EpoxyHeaders from r.
func (h *EpoxyHeaders) Decode(r *epoxybuf.Reader) error {
	var err error
	if h.ConversationID, err = r.ReadUint64(); err != nil {
		return err
	}
	pt, err := r.ReadUint8()
	if err != nil {
		return err
	}
	h.PayloadType = PayloadType(pt)
	if h.MethodName, err = r.ReadString(); err != nil {
		return err
	}
	h.ErrorCode, err = r.ReadInt32()
	return err
}

// IsOK reports whether the headers carry a successful payload.
func (h *EpoxyHeaders) IsOK() bool {
	return h.ErrorCode == 0
}

// EpoxyConfig is an empty record. Its presence on the wire, as the sole
// framelet of a frame, is the entire handshake signal.
type EpoxyConfig struct{}

// Encode is a no-op; EpoxyConfig carries no fields.
func (*EpoxyConfig) Encode(*epoxybuf.Buffer) {}

// Decode is a no-op; EpoxyConfig carries no fields.
func (*EpoxyConfig) Decode(*epoxybuf.Reader) error { return nil }
