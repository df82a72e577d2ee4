package protocol

import "time"

// ConnectionMetrics is created once at connection construction and emitted
// exactly once at teardown, after Disconnected is reached.
type ConnectionMetrics struct {
	ConnectionID   string
	LocalEndpoint  string
	RemoteEndpoint string
	ShutdownReason ConnectionShutdownReason
	DurationMillis int64
	startedAt      time.Time
}

// NewConnectionMetrics returns a ConnectionMetrics record with its clock
// started; StampDuration fills in DurationMillis at teardown.
func NewConnectionMetrics(connectionID, local, remote string) *ConnectionMetrics {
	return &ConnectionMetrics{
		ConnectionID:   connectionID,
		LocalEndpoint:  local,
		RemoteEndpoint: remote,
		startedAt:      time.Now(),
	}
}

// StampDuration records the elapsed connection lifetime in DurationMillis.
// Called exactly once, at the Disconnected transition.
func (m *ConnectionMetrics) StampDuration() {
	m.DurationMillis = time.Since(m.startedAt).Milliseconds()
}
