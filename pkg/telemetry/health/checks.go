package health

import (
	"context"
	"errors"
	"fmt"
)

// Pinger is implemented by dependencies that can report reachability, such
// as the rule store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck returns a check that pings p.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// LastErrorCheck returns a check that fails while lastError reports a
// non-empty message. It suits components that record their most recent
// failure, such as the rules file reloader.
func LastErrorCheck(lastError func() string) CheckFunc {
	return func(ctx context.Context) error {
		if msg := lastError(); msg != "" {
			return errors.New(msg)
		}
		return nil
	}
}

// MinCountCheck returns a check that fails while count reports fewer than
// min items.
func MinCountCheck(what string, min int, count func() int) CheckFunc {
	return func(ctx context.Context) error {
		if n := count(); n < min {
			return fmt.Errorf("%d %s registered, want at least %d", n, what, min)
		}
		return nil
	}
}
