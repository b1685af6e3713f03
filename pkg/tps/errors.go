package tps

import (
	"errors"
	"fmt"
)

// Error types for rule validation, registration and admission.
var (
	// ErrInvalidRule is returned when a rule has an invalid field.
	ErrInvalidRule = errors.New("invalid tps rule")

	// ErrInvalidPattern is returned when a pattern is malformed.
	ErrInvalidPattern = errors.New("invalid monitor key pattern")

	// ErrPointExists is returned when registering a point name twice.
	ErrPointExists = errors.New("tps control point already registered")

	// ErrPointNotFound is returned when a point name is not registered.
	ErrPointNotFound = errors.New("tps control point not found")

	// ErrInvalidPoint is returned when registering a nil or unnamed point.
	ErrInvalidPoint = errors.New("invalid tps control point")

	// ErrInvalidPolicy is returned when an unknown point policy is not recognized.
	ErrInvalidPolicy = errors.New("invalid unknown point policy")

	// ErrThrottled is returned by Manager.Check when a request is rejected.
	ErrThrottled = errors.New("tps limit exceeded")
)

// RuleError provides detail about an invalid rule or pattern.
type RuleError struct {
	// Pattern is the monitor key pattern, empty for the point rule.
	Pattern string

	// Field is the offending field (max_count, period, mode, action, pattern).
	Field string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	if e.Pattern == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("rule %q: %s: %v", e.Pattern, e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *RuleError) Unwrap() error {
	return e.Err
}

// ThrottledError reports a rejected request. It wraps ErrThrottled so callers
// can tell throttling apart from other failures and back off.
type ThrottledError struct {
	// Point is the monitor point name.
	Point string

	// Pattern is the pattern whose budget was exceeded, empty for the point rule.
	Pattern string

	// Limit is the exceeded ceiling.
	Limit int64

	// Decision is the full evaluation result.
	Decision Decision
}

// Error implements the error interface.
func (e *ThrottledError) Error() string {
	if e.Pattern == "" {
		return fmt.Sprintf("tps limit exceeded for point %s: limit=%d", e.Point, e.Limit)
	}
	return fmt.Sprintf("tps limit exceeded for point %s, pattern %s: limit=%d", e.Point, e.Pattern, e.Limit)
}

// Unwrap returns ErrThrottled.
func (e *ThrottledError) Unwrap() error {
	return ErrThrottled
}
