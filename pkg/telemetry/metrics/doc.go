// Package metrics provides the Prometheus registry and exporter for tollgate.
//
// # Metrics Categories
//
//   - TPS: checks, exceeded limits, unknown points, rule swaps, live counters
//     (recorded by package tps through Collector.TPS)
//   - HTTP: request count and latency by route
//   - Rules: file reloads and rule changes by source
//   - Cluster: server list size
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	manager := tps.NewManager(tps.WithMetrics(collector.TPS()))
//	mux.Handle("/metrics", collector.Handler())
//
// When metrics are disabled the collector records nothing and Collector.TPS
// returns nil.
package metrics
