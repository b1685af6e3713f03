package tps

import (
	"fmt"
	"log/slog"
	"time"
)

// Default values for points and managers.
const (
	// DefaultIdlePeriods is how many untouched periods make a counter
	// eligible for eviction.
	DefaultIdlePeriods = 3

	// DefaultWarnInterval is the minimum interval between unknown point warnings.
	DefaultWarnInterval = time.Second
)

// UnknownPointPolicy decides the verdict for requests against a point name
// that was never registered.
type UnknownPointPolicy string

const (
	// FailOpen admits requests for unknown points.
	FailOpen UnknownPointPolicy = "fail-open"

	// FailClosed rejects requests for unknown points.
	FailClosed UnknownPointPolicy = "fail-closed"
)

// ParseUnknownPointPolicy parses a policy string. Empty means FailOpen.
func ParseUnknownPointPolicy(s string) (UnknownPointPolicy, error) {
	switch UnknownPointPolicy(s) {
	case "", FailOpen, "open":
		return FailOpen, nil
	case FailClosed, "closed":
		return FailClosed, nil
	default:
		return "", fmt.Errorf("%w %q: want fail-open or fail-closed", ErrInvalidPolicy, s)
	}
}

type options struct {
	now           func() time.Time
	idlePeriods   int
	logger        *slog.Logger
	metrics       *Metrics
	unknownPolicy UnknownPointPolicy
	warnInterval  time.Duration
}

func defaultOptions() options {
	return options{
		now:           time.Now,
		idlePeriods:   DefaultIdlePeriods,
		logger:        slog.Default(),
		unknownPolicy: FailOpen,
		warnInterval:  DefaultWarnInterval,
	}
}

// Option configures a MonitorPoint or Manager.
type Option func(*options)

// WithClock sets the time source. Tests use it to pin periods.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIdlePeriods sets how many untouched periods make a counter evictable.
func WithIdlePeriods(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.idlePeriods = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the Prometheus metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithUnknownPointPolicy sets the manager's verdict for unknown points.
func WithUnknownPointPolicy(p UnknownPointPolicy) Option {
	return func(o *options) {
		if p != "" {
			o.unknownPolicy = p
		}
	}
}

// WithWarnInterval sets the minimum interval between unknown point warnings.
func WithWarnInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.warnInterval = d
		}
	}
}
