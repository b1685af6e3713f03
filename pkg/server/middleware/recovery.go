package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"mercator-hq/tollgate/pkg/server/api"
)

// RecoveryMiddleware recovers from handler panics, logs the stack and
// answers 500 without exposing internal details.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("component", "http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "panic in handler",
						"error", err,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					api.WriteError(w, http.StatusInternalServerError, api.ErrorTypeServerError,
						"An internal error occurred.")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
