package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// RouteFunc maps a request to a low-cardinality route name.
type RouteFunc func(*http.Request) string

// Observer receives the outcome of every request, typically to record
// metrics.
type Observer func(route, method string, status int, latency time.Duration)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// LoggingMiddleware logs each request at a level chosen from its status
// (info, warn for 4xx, error for 5xx) and reports it to observe. Either of
// route and observe may be nil.
//
// Log format (JSON):
//
//	{
//	  "level": "INFO",
//	  "msg": "request completed",
//	  "method": "POST",
//	  "route": "/v1/tps/check",
//	  "status": 200,
//	  "latency_ms": 0,
//	  "request_id": "0b6f1c9e-..."
//	}
func LoggingMiddleware(logger *slog.Logger, route RouteFunc, observe Observer) func(http.Handler) http.Handler {
	logger = logger.With("component", "http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			latency := time.Since(start)
			name := r.URL.Path
			if route != nil {
				name = route(r)
			}

			level := slog.LevelInfo
			switch {
			case rw.statusCode >= 500:
				level = slog.LevelError
			case rw.statusCode >= 400:
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "request completed",
				"method", r.Method,
				"route", name,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"latency_ms", latency.Milliseconds(),
				"remote_addr", r.RemoteAddr,
			)

			if observe != nil {
				observe(name, r.Method, rw.statusCode, latency)
			}
		})
	}
}
