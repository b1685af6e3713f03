// Tollgate is a TPS admission control service.
//
// It registers named monitor points, applies per-point and per-key
// transaction-per-second ceilings from a rule file or the admin API, and
// answers admission checks over HTTP.
//
// Usage:
//
//	# Start the server
//	tollgate run --config /etc/tollgate/config.yaml
//
//	# Validate a rule file
//	tollgate validate --rules rules.yaml
//
//	# Ask a running server whether a request is admitted
//	tollgate check --server http://127.0.0.1:9090 --point configPublish --key testKey:a1b
//
//	# Drive an in-process engine with concurrent load
//	tollgate simulate --rules rules.yaml --point configPublish --duration 5s
package main

func main() {
	Execute()
}
