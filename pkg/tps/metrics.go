package tps

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for TPS control.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Admission checks
	checks   *prometheus.CounterVec
	exceeded *prometheus.CounterVec

	// Manager dispatch
	unknownPoints *prometheus.CounterVec

	// Rules and counters
	ruleSwaps *prometheus.CounterVec
	evictions *prometheus.CounterVec
	counters  *prometheus.GaugeVec
}

// NewMetrics creates the TPS metrics and registers them with reg. If reg is
// nil the default Prometheus registerer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "tollgate"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tps",
				Name:      "checks_total",
				Help:      "Total number of admission checks by point and result",
			},
			[]string{"point", "result"},
		),

		exceeded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tps",
				Name:      "ceiling_exceeded_total",
				Help:      "Total number of rule ceilings exceeded, including monitor-only rules",
			},
			[]string{"point", "pattern", "action"},
		),

		unknownPoints: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tps",
				Name:      "unknown_point_total",
				Help:      "Total number of checks against unregistered points",
			},
			[]string{"policy"},
		),

		ruleSwaps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tps",
				Name:      "rule_swaps_total",
				Help:      "Total number of rule replacements",
			},
			[]string{"point"},
		),

		evictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tps",
				Name:      "counter_evictions_total",
				Help:      "Total number of idle or orphaned counters evicted",
			},
			[]string{"point"},
		),

		counters: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "tps",
				Name:      "counters",
				Help:      "Current number of live counters",
			},
			[]string{"point"},
		),
	}
}

func (m *Metrics) recordCheck(point string, allowed bool) {
	if m == nil {
		return
	}
	result := "admitted"
	if !allowed {
		result = "rejected"
	}
	m.checks.WithLabelValues(point, result).Inc()
}

func (m *Metrics) recordExceeded(point, pattern string, action Action) {
	if m == nil {
		return
	}
	if pattern == "" {
		pattern = "point"
	}
	m.exceeded.WithLabelValues(point, pattern, string(action)).Inc()
}

func (m *Metrics) recordUnknownPoint(policy UnknownPointPolicy) {
	if m == nil {
		return
	}
	m.unknownPoints.WithLabelValues(string(policy)).Inc()
}

func (m *Metrics) recordRuleSwap(point string) {
	if m == nil {
		return
	}
	m.ruleSwaps.WithLabelValues(point).Inc()
}

func (m *Metrics) recordEvictions(point string, n int) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(point).Add(float64(n))
}

func (m *Metrics) setCounters(point string, n int64) {
	if m == nil {
		return
	}
	m.counters.WithLabelValues(point).Set(float64(n))
}
