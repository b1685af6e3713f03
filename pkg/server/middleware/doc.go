// Package middleware contains the HTTP middleware of the admin server.
//
// The server chains them outermost first:
//
//	recovery -> request id -> tracing -> logging -> body limit -> mux
package middleware
