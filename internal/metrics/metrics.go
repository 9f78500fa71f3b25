// Package metrics exposes Prometheus instrumentation for the governor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/solvergate/solvergate/internal/governor"
	"github.com/solvergate/solvergate/internal/resource"
)

// Metrics implements governor.Recorder and registers resource gauges.
type Metrics struct {
	invocations *prometheus.CounterVec
	durations   *prometheus.HistogramVec
}

// New registers the solvergate collectors on reg and returns the
// recorder. The active-slot and memory gauges read the shared state
// lazily at scrape time.
func New(reg prometheus.Registerer, provider *resource.Provider, gate *resource.Gate) *Metrics {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solvergate",
			Name:      "invocations_total",
			Help:      "Terminal invocation outcomes by tool and outcome label.",
		}, []string{"tool", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "solvergate",
			Name:      "invocation_duration_seconds",
			Help:      "Wall-clock duration of governed invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"tool"}),
	}
	reg.MustRegister(m.invocations, m.durations)

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "solvergate",
		Name:      "active_slots",
		Help:      "Concurrency slots currently held by in-flight solves.",
	}, func() float64 { return float64(gate.Active()) }))
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "solvergate",
		Name:      "memory_used_mb",
		Help:      "Process memory usage as seen by the admission check.",
	}, func() float64 { return float64(provider.Snapshot().MemoryUsedMB) }))

	return m
}

// Record implements governor.Recorder.
func (m *Metrics) Record(o governor.Outcome) {
	m.invocations.WithLabelValues(o.Tool, o.Label()).Inc()
	m.durations.WithLabelValues(o.Tool).Observe(o.Duration.Seconds())
}
