// Package server provides the tollgate HTTP server: the admission check
// endpoint, rule administration, cluster views and the telemetry endpoints.
//
// # Routes
//
//	POST   /v1/tps/check                  admission check (200 admitted, 429 throttled)
//	GET    /v1/tps/points                 registered points
//	GET    /v1/tps/points/{name}/rule     current rule (404 for unknown points)
//	PUT    /v1/tps/points/{name}/rule     replace rule (400 on invalid rule)
//	DELETE /v1/tps/points/{name}/rule     clear rule
//	GET    /v1/tps/points/{name}/stats    live counters
//	GET    /v1/rules/status               last rules file load
//	POST   /v1/rules/reload               reload the rules file now
//	GET    /v1/cluster/servers            peer server list
//	POST   /v1/cluster/select             CMDB label selection
//	GET    /health, /ready, /version      probes
//	GET    /metrics                       Prometheus
//
// # Throttled responses
//
//	HTTP/1.1 429 Too Many Requests
//	{"error": {"type": "tps_throttled", "message": "tps limit exceeded",
//	           "point": "configPublish", "pattern": "testKey:a*b", "limit": 500}}
//
// # Usage
//
//	srv, err := server.New(cfg, server.Deps{
//	    Manager:   manager,
//	    Reloader:  reloader,
//	    Telemetry: tel,
//	})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx) // returns after ctx is cancelled and shutdown completes
package server
