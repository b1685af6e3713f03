package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RulesMetrics tracks rule reloads and rule changes.
type RulesMetrics struct {
	reloads *prometheus.CounterVec
	applied *prometheus.CounterVec
}

// NewRulesMetrics creates and registers the rules metrics.
func NewRulesMetrics(namespace string, reg prometheus.Registerer) *RulesMetrics {
	factory := promauto.With(reg)
	return &RulesMetrics{
		reloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rules",
				Name:      "reloads_total",
				Help:      "Total number of rules file reloads by result",
			},
			[]string{"result"},
		),
		applied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rules",
				Name:      "applied_total",
				Help:      "Total number of rule changes applied by source",
			},
			[]string{"source"},
		),
	}
}

// RecordReload records a reload result.
func (rm *RulesMetrics) RecordReload(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	rm.reloads.WithLabelValues(result).Inc()
}

// RecordApplied records a rule change.
func (rm *RulesMetrics) RecordApplied(source string) {
	rm.applied.WithLabelValues(source).Inc()
}

// ClusterMetrics tracks the cluster server list.
type ClusterMetrics struct {
	servers *prometheus.GaugeVec
}

// NewClusterMetrics creates and registers the cluster metrics.
func NewClusterMetrics(namespace string, reg prometheus.Registerer) *ClusterMetrics {
	return &ClusterMetrics{
		servers: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cluster",
				Name:      "servers",
				Help:      "Number of servers in the cluster server list",
			},
			[]string{"name"},
		),
	}
}

// UpdateServers sets the server count for a server list.
func (cm *ClusterMetrics) UpdateServers(name string, size int) {
	cm.servers.WithLabelValues(name).Set(float64(size))
}
