// Package metrics registers the prometheus collectors for ceremony
// lifecycle and stage latency (spec §5 concurrency model observability).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the engine exports. One instance is
// shared across every scheme's Ceremony Manager.
type Metrics struct {
	CeremoniesStarted   *prometheus.CounterVec
	CeremoniesSucceeded *prometheus.CounterVec
	CeremoniesFailed    *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	LiveCeremonies      *prometheus.GaugeVec
}

// New constructs and registers every collector against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CeremoniesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multisig",
			Name:      "ceremonies_started_total",
			Help:      "Ceremonies started, by scheme and kind.",
		}, []string{"scheme", "kind"}),
		CeremoniesSucceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multisig",
			Name:      "ceremonies_succeeded_total",
			Help:      "Ceremonies completed successfully, by scheme and kind.",
		}, []string{"scheme", "kind"}),
		CeremoniesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multisig",
			Name:      "ceremonies_failed_total",
			Help:      "Ceremonies that ended in blame, by scheme, kind, and reason.",
		}, []string{"scheme", "kind", "reason"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "multisig",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock time spent in a single stage before advancing.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scheme", "kind", "stage"}),
		LiveCeremonies: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "multisig",
			Name:      "live_ceremonies",
			Help:      "Ceremonies currently owned by a Manager, by scheme.",
		}, []string{"scheme"}),
	}

	reg.MustRegister(m.CeremoniesStarted, m.CeremoniesSucceeded, m.CeremoniesFailed, m.StageDuration, m.LiveCeremonies)
	return m
}
