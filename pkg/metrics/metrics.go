// Package metrics generates connection IDs and delivers the single
// ConnectionMetrics record a connection engine emits at teardown.
package metrics

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/minghan/bond/pkg/protocol"
)

// NewConnectionID returns a lexicographically sortable, globally unique
// connection identifier, in the ulid.MustNew(ulid.Timestamp(t), entropy)
// idiom.
func NewConnectionID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Sink receives a connection's ConnectionMetrics exactly once, at teardown.
type Sink interface {
	Emit(m protocol.ConnectionMetrics)
}

// NopSink discards every record; it's the default when no sink is configured.
type NopSink struct{}

func (NopSink) Emit(protocol.ConnectionMetrics) {}

// MemorySink accumulates every emitted record, guarded by a mutex. It's
// meant for tests and for short-lived tools that print a final summary.
type MemorySink struct {
	mu      sync.Mutex
	records []protocol.ConnectionMetrics
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(m protocol.ConnectionMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, m)
}

// Records returns a copy of every record emitted so far.
func (s *MemorySink) Records() []protocol.ConnectionMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.ConnectionMetrics, len(s.records))
	copy(out, s.records)
	return out
}
