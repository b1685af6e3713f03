// Package logging builds the service's structured logger on top of log/slog.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//	    return err
//	}
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	ctx = logging.WithPoint(ctx, "configPublish")
//	logger.InfoContext(ctx, "tps check") // includes request_id and point
//
// Components derive their own logger with a component attribute:
//
//	logger.With("component", "rules.reloader")
package logging
