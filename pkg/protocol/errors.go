package protocol

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/minghan/bond/pkg/epoxybuf"
)

// ProtocolErrorCode enumerates the reasons a peer may reject a frame or
// abort a connection. Numeric assignments are part of the wire contract and
// must not change once peers depend on them.
type ProtocolErrorCode int32

const (
	CodeOK                    ProtocolErrorCode = 0
	CodeInternalError         ProtocolErrorCode = 1
	CodeConnectionRejected    ProtocolErrorCode = 2
	CodeProtocolViolated      ProtocolErrorCode = 3
	CodeConversationIDUnknown ProtocolErrorCode = 4
	CodeMalformedData         ProtocolErrorCode = 5
)

var codeNames = map[ProtocolErrorCode]string{
	CodeOK:                    "OK",
	CodeInternalError:         "INTERNAL_ERROR",
	CodeConnectionRejected:    "CONNECTION_REJECTED",
	CodeProtocolViolated:      "PROTOCOL_VIOLATED",
	CodeConversationIDUnknown: "CONVERSATION_ID_UNKNOWN",
	CodeMalformedData:         "MALFORMED_DATA",
}

func (c ProtocolErrorCode) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("ProtocolErrorCode(%d)", int32(c))
}

// ConnectionShutdownReason records why a connection reached Disconnected,
// for inclusion in ConnectionMetrics.
type ConnectionShutdownReason int32

const (
	ShutdownUnknown ConnectionShutdownReason = iota
	ShutdownClientGraceful
	ShutdownServerGraceful
	ShutdownClientProtocolError
	ShutdownBondInternalError
	ShutdownServiceInternalError
	ShutdownNetworkError
)

var shutdownReasonNames = map[ConnectionShutdownReason]string{
	ShutdownUnknown:             "Unknown",
	ShutdownClientGraceful:      "ClientGraceful",
	ShutdownServerGraceful:      "ServerGraceful",
	ShutdownClientProtocolError: "ClientProtocolError",
	ShutdownBondInternalError:   "BondInternalError",
	ShutdownServiceInternalError: "ServiceInternalError",
	ShutdownNetworkError:        "NetworkError",
}

func (r ConnectionShutdownReason) String() string {
	if n, ok := shutdownReasonNames[r]; ok {
		return n
	}
	return fmt.Sprintf("ConnectionShutdownReason(%d)", int32(r))
}

// ProtocolError is the standalone framelet sent when a peer rejects a frame
// or the connection outright. Details is optional: it carries the
// structured error behind a handshake rejection, if any.
type ProtocolError struct {
	Code    ProtocolErrorCode
	Details *Error
}

// Encode serializes p into buf.
func (p *ProtocolError) Encode(buf *epoxybuf.Buffer) {
	buf.WriteInt32(int32(p.Code))
	if p.Details == nil {
		buf.WriteUint8(0)
		return
	}
	buf.WriteUint8(1)
	p.Details.Encode(buf)
}

// Decode reads a ProtocolError from r.
func (p *ProtocolError) Decode(r *epoxybuf.Reader) error {
	code, err := r.ReadInt32()
	if err != nil {
		return err
	}
	p.Code = ProtocolErrorCode(code)
	has, err := r.ReadUint8()
	if err != nil {
		return err
	}
	if has == 0 {
		p.Details = nil
		return nil
	}
	p.Details = &Error{}
	return p.Details.Decode(r)
}

func (p *ProtocolError) Error() string {
	if p.Details != nil {
		return fmt.Sprintf("protocol error %s: %s", p.Code, p.Details.Message)
	}
	return fmt.Sprintf("protocol error %s", p.Code)
}

// Error is the base polymorphic error record: an error code, a
// message, and an optional nested inner error. The connection core neither
// interprets nor synthesizes user-domain errors; it only constructs
// TransportError- and InternalServerError-shaped records at well-defined
// failure points.
type Error struct {
	Code    int32
	Message string
	Inner   *Error
}

// Encode serializes e into buf.
func (e *Error) Encode(buf *epoxybuf.Buffer) {
	buf.WriteInt32(e.Code)
	buf.WriteString(e.Message)
	if e.Inner == nil {
		buf.WriteUint8(0)
		return
	}
	buf.WriteUint8(1)
	e.Inner.Encode(buf)
}

// Decode reads an Error from r.
func (e *Error) Decode(r *epoxybuf.Reader) error {
	var err error
	if e.Code, err = r.ReadInt32(); err != nil {
		return err
	}
	if e.Message, err = r.ReadString(); err != nil {
		return err
	}
	has, err := r.ReadUint8()
	if err != nil {
		return err
	}
	if has == 0 {
		e.Inner = nil
		return nil
	}
	e.Inner = &Error{}
	return e.Inner.Decode(r)
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil error>"
	}
	if e.Inner != nil {
		return fmt.Sprintf("%s (code %d): %v", e.Message, e.Code, e.Inner)
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// TransportErrorCode is the code assigned to engine-synthesized transport
// failures (socket closed, peer hang-up, write failure).
const TransportErrorCode int32 = -1

// NewTransportError builds an Error record of the shape the engine emits
// when a pending request can't be completed because the connection failed.
func NewTransportError(message string) *Error {
	return &Error{Code: TransportErrorCode, Message: message}
}

// InternalServerErrorCode is the code assigned to dispatch-panic recoveries.
const InternalServerErrorCode int32 = -2

// InternalServerError wraps a recovered dispatch panic or handler error into
// the Error shape sent back to the peer as a request's response.
type InternalServerError struct {
	Err Error
}

// NewInternalServerError builds an InternalServerError record.
func NewInternalServerError(message string) *InternalServerError {
	return &InternalServerError{Err: Error{Code: InternalServerErrorCode, Message: message}}
}

// Error implements the error interface by delegating to the wrapped Error
// record.
func (e *InternalServerError) Error() string {
	return e.Err.Error()
}

// AggregateError combines multiple causes into a single error record.
// Backed by go.uber.org/multierr rather than a hand-rolled slice-of-errors
// type. The connection engine's teardown does not construct one.
type AggregateError struct {
	cause error
}

// NewAggregateError returns nil if errs contains no non-nil error, that
// error unchanged if exactly one is non-nil, or an *AggregateError
// combining all of them.
func NewAggregateError(errs ...error) error {
	var combined error
	for _, e := range errs {
		if e != nil {
			combined = multierr.Append(combined, e)
		}
	}
	if combined == nil {
		return nil
	}
	if len(multierr.Errors(combined)) == 1 {
		return combined
	}
	return &AggregateError{cause: combined}
}

func (a *AggregateError) Error() string {
	return a.cause.Error()
}

// Causes returns the individual errors that make up the aggregate.
func (a *AggregateError) Causes() []error {
	return multierr.Errors(a.cause)
}

// Unwrap supports errors.Is/errors.As against any individual cause.
func (a *AggregateError) Unwrap() error {
	return a.cause
}
