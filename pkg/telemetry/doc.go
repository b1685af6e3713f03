// Package telemetry bundles the observability stack of tollgate: structured
// logging, Prometheus metrics, OpenTelemetry tracing and health probes.
//
// # Components
//
//   - logging: slog logger with request fields from the context
//   - metrics: Prometheus registry, TPS and HTTP metrics
//   - tracing: OTLP tracing
//   - health: liveness and readiness probes
//
// # Usage
//
//	tel, err := telemetry.New(&cfg.Telemetry, telemetry.BuildInfo{Version: version}, os.Stdout)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	manager := tps.NewManager(
//	    tps.WithLogger(tel.Logger),
//	    tps.WithMetrics(tel.Metrics.TPS()),
//	)
package telemetry
