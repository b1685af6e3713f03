package metrics

import (
	"time"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/tps"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector owns the Prometheus registry for the service and the metric
// groups recorded outside the TPS engine.
//
// A nil *Collector is valid; every Record method is then a no-op.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	tpsMetrics     *tps.Metrics
	requestMetrics *RequestMetrics
	rulesMetrics   *RulesMetrics
	clusterMetrics *ClusterMetrics
}

// NewCollector creates a collector and registers all metric groups with
// registry. If registry is nil a fresh one is created.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	manager := tps.NewManager(tps.WithMetrics(collector.TPS()))
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Collector{
		config:         cfg,
		registry:       registry,
		tpsMetrics:     tps.NewMetrics(cfg.Namespace, registry),
		requestMetrics: NewRequestMetrics(cfg.Namespace, registry),
		rulesMetrics:   NewRulesMetrics(cfg.Namespace, registry),
		clusterMetrics: NewClusterMetrics(cfg.Namespace, registry),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// TPS returns the metrics handed to the TPS manager. Nil when metrics are
// disabled.
func (c *Collector) TPS() *tps.Metrics {
	if !c.enabled() {
		return nil
	}
	return c.tpsMetrics
}

// RecordRequest records a completed HTTP request.
func (c *Collector) RecordRequest(route, method string, status int, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.requestMetrics.RecordRequest(route, method, status, duration)
}

// RecordReload records a rules file reload attempt.
func (c *Collector) RecordReload(err error) {
	if !c.enabled() {
		return
	}
	c.rulesMetrics.RecordReload(err)
}

// RecordRuleApplied records a rule change applied from source.
func (c *Collector) RecordRuleApplied(source string) {
	if !c.enabled() {
		return
	}
	c.rulesMetrics.RecordApplied(source)
}

// UpdateServerList records the size of the cluster server list.
func (c *Collector) UpdateServerList(name string, size int) {
	if !c.enabled() {
		return
	}
	c.clusterMetrics.UpdateServers(name, size)
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}
