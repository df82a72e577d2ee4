package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/minghan/bond/pkg/protocol"
)

// PrometheusSink records each connection's lifetime and shutdown reason as
// Prometheus series, in the CounterVec/HistogramVec registration idiom of
// danmuck-edgectl's observability package.
type PrometheusSink struct {
	connectionsClosed *prometheus.CounterVec
	connectionSeconds *prometheus.HistogramVec

	registerOnce sync.Once
	registerer   prometheus.Registerer
}

// NewPrometheusSink builds a PrometheusSink registering its collectors
// against reg. A nil reg registers against prometheus.DefaultRegisterer.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusSink{
		registerer: reg,
		connectionsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "epoxy",
				Subsystem: "connection",
				Name:      "closed_total",
				Help:      "Total connections torn down, by shutdown reason.",
			},
			[]string{"shutdown_reason"},
		),
		connectionSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "epoxy",
				Subsystem: "connection",
				Name:      "duration_seconds",
				Help:      "Connection lifetime from Start to teardown.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"shutdown_reason"},
		),
	}
}

func (s *PrometheusSink) register() {
	s.registerOnce.Do(func() {
		s.registerer.MustRegister(s.connectionsClosed, s.connectionSeconds)
	})
}

// Emit implements Sink.
func (s *PrometheusSink) Emit(m protocol.ConnectionMetrics) {
	s.register()
	reason := m.ShutdownReason.String()
	s.connectionsClosed.WithLabelValues(reason).Inc()
	s.connectionSeconds.WithLabelValues(reason).Observe(float64(m.DurationMillis) / 1000.0)
}
