// Package health provides liveness and readiness probes.
//
// Liveness only reports that the process runs. Readiness runs every
// registered check concurrently, each bounded by the checker's timeout, and
// answers 503 when any of them fails.
//
// # Usage
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("rule_store", health.PingCheck(backend))
//	checker.RegisterCheck("rules_file", health.LastErrorCheck(func() string {
//	    return reloader.Status().LastError
//	}))
//
//	mux.HandleFunc("/health", checker.LivenessHandler())
//	mux.HandleFunc("/ready", checker.ReadinessHandler())
package health
