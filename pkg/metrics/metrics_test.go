package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/minghan/bond/pkg/protocol"
)

func TestNewConnectionIDIsNonEmptyAndUnique(t *testing.T) {
	a := NewConnectionID()
	b := NewConnectionID()
	if a == "" || b == "" {
		t.Fatalf("NewConnectionID returned empty string")
	}
	if a == b {
		t.Fatalf("NewConnectionID returned duplicate IDs: %q", a)
	}
}

func TestMemorySinkAccumulates(t *testing.T) {
	sink := NewMemorySink()
	m1 := *protocol.NewConnectionMetrics("a", "local", "remote")
	m2 := *protocol.NewConnectionMetrics("b", "local", "remote")

	sink.Emit(m1)
	sink.Emit(m2)

	got := sink.Records()
	if len(got) != 2 {
		t.Fatalf("Records() length = %d, want 2", len(got))
	}
	if got[0].ConnectionID != "a" || got[1].ConnectionID != "b" {
		t.Fatalf("Records() = %+v, want order a, b", got)
	}
}

func TestNopSinkDiscards(t *testing.T) {
	var s NopSink
	s.Emit(*protocol.NewConnectionMetrics("x", "", ""))
}

func TestPrometheusSinkRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	m := protocol.NewConnectionMetrics("conn-1", "local:1", "remote:1")
	m.ShutdownReason = protocol.ShutdownClientGraceful
	m.StampDuration()

	sink.Emit(*m)
	sink.Emit(*m)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 2 {
		t.Fatalf("Gather() returned %d families, want 2", len(families))
	}
}
