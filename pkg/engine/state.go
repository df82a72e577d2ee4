// Package engine implements the connection engine: the nine-state
// handshake-plus-steady-state machine that owns a Connection's socket,
// correlator, and conversation-id allocator, and drives its entire
// lifecycle from Start through Stop. Grounded on the goroutine/semaphore/
// waitgroup drain pattern of strandapi/pkg/server/server.go and the
// Dial/functional-option shape of strandapi/pkg/client/client.go.
package engine

import "fmt"

// State is one of the nine states a Connection passes through.
type State int32

const (
	StateCreated State = iota
	StateClientSendConfig
	StateClientExpectConfig
	StateServerExpectConfig
	StateServerSendConfig
	StateConnected
	StateSendProtocolError
	StateDisconnecting
	StateDisconnected
)

var stateNames = map[State]string{
	StateCreated:            "Created",
	StateClientSendConfig:   "ClientSendConfig",
	StateClientExpectConfig: "ClientExpectConfig",
	StateServerExpectConfig: "ServerExpectConfig",
	StateServerSendConfig:   "ServerSendConfig",
	StateConnected:          "Connected",
	StateSendProtocolError:  "SendProtocolError",
	StateDisconnecting:      "Disconnecting",
	StateDisconnected:       "Disconnected",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Role distinguishes which side of the handshake a Connection plays; the
// state machine and wire format are otherwise identical for both.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}
