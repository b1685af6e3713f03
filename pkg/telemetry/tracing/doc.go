// Package tracing configures OpenTelemetry tracing for tollgate.
//
// Spans are exported over OTLP gRPC to the configured collector. When
// tracing is disabled a noop tracer is used and span creation costs almost
// nothing.
//
// # Spans
//
//   - "<METHOD> <route>": server span per HTTP request (HTTPMiddleware)
//   - "tollgate.tps.check": one admission check, with point, key count and verdict
//   - "tollgate.rules.reload" and "tollgate.rules.restore": rule loading
//
// # Sampling
//
// Samplers are parent based: "always", "never", or "ratio" with
// sample_ratio between 0 and 1.
package tracing
