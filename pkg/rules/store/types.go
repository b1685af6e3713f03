package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mercator-hq/tollgate/pkg/tps"
)

// ErrClosed is returned when using a backend after Close.
var ErrClosed = errors.New("rule store closed")

// Backend defines the interface for rule persistence.
// Implementations must be thread-safe.
type Backend interface {
	// Save persists the rule for a point, replacing any previous one.
	Save(ctx context.Context, rec *Record) error

	// Load returns the record for a point, or nil if none exists.
	Load(ctx context.Context, point string) (*Record, error)

	// List returns all records ordered by point name. A row whose rule
	// cannot be decoded is returned with Err set instead of failing the call.
	List(ctx context.Context) ([]*Record, error)

	// Delete removes the record for a point. No-op if it does not exist.
	Delete(ctx context.Context, point string) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}

// Record is the persisted rule of one point.
type Record struct {
	// Point is the monitor point name.
	Point string

	// Rule is the control rule. Nil only when Err is set.
	Rule *tps.ControlRule

	// Err is set by List when the stored rule could not be decoded or
	// failed validation. Other fields are still populated.
	Err error

	// Source records who applied the rule, for example "file" or "api".
	Source string

	// UpdatedAt is when the rule was last saved.
	UpdatedAt time.Time
}

func validate(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.Point == "" {
		return fmt.Errorf("point cannot be empty")
	}
	if rec.Rule == nil {
		return fmt.Errorf("rule cannot be nil")
	}
	return nil
}
