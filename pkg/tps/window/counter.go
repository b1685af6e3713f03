package window

import (
	"sync"
	"time"
)

// Counter tracks requests for one budget over a fixed, wall-clock aligned period.
//
// A period starts at now.Truncate(period). When an access lands past the end
// of the current period the counter moves forward to the period containing
// now and starts from zero. Skipped periods are treated as idle.
//
// # Algorithm
//
//  1. Align the counter to the period containing now (reset if it moved)
//  2. Admit when passed+1 <= max and increment passed
//  3. Otherwise increment blocked
//
// Steps 1-3 run under the counter's own mutex, so concurrent callers racing
// at the ceiling never admit more than max requests in one period.
//
// # Thread Safety
//
// Counter is safe for concurrent use. Each counter owns its lock; there is no
// lock shared between counters.
type Counter struct {
	mu          sync.Mutex
	period      time.Duration
	periodStart time.Time
	passed      int64
	blocked     int64
	lastAccess  time.Time
	retired     bool
}

// Result is the outcome of a single TryAcquire call.
type Result struct {
	// Admitted is true when the request fit under the ceiling.
	Admitted bool

	// Count is the admitted count in the current period after this call.
	Count int64

	// Blocked is the over-ceiling count in the current period after this call.
	Blocked int64

	// PeriodStart is the start of the period the request was counted in.
	PeriodStart time.Time

	// Retired is set when the counter was evicted before the call could
	// be recorded. Nothing was counted; callers must retry with a fresh counter.
	Retired bool
}

// Snapshot is a point-in-time copy of a counter's state.
type Snapshot struct {
	PeriodStart time.Time
	Period      time.Duration
	Passed      int64
	Blocked     int64
	LastAccess  time.Time
}

// Offered returns the total number of attempts seen in the period.
func (s Snapshot) Offered() int64 {
	return s.Passed + s.Blocked
}

// NewCounter creates an empty counter. The period is taken from the first
// TryAcquire call.
func NewCounter() *Counter {
	return &Counter{}
}

// TryAcquire records one attempt against a ceiling of max per period.
//
// Check and increment happen in one critical section. A rejected attempt is
// still recorded in the blocked count so monitoring reflects offered load.
// A max of zero rejects every attempt.
func (c *Counter) TryAcquire(now time.Time, max int64, period time.Duration) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.retired {
		return Result{Retired: true}
	}

	c.alignLocked(now, period)
	c.lastAccess = now

	if c.passed+1 <= max {
		c.passed++
		return Result{
			Admitted:    true,
			Count:       c.passed,
			Blocked:     c.blocked,
			PeriodStart: c.periodStart,
		}
	}

	c.blocked++
	return Result{
		Admitted:    false,
		Count:       c.passed,
		Blocked:     c.blocked,
		PeriodStart: c.periodStart,
	}
}

// Snapshot returns the counter state as seen at now. A lapsed period reads as
// empty without mutating the counter.
func (c *Counter) Snapshot(now time.Time) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		PeriodStart: c.periodStart,
		Period:      c.period,
		Passed:      c.passed,
		Blocked:     c.blocked,
		LastAccess:  c.lastAccess,
	}
	if c.period > 0 && !now.Before(c.periodStart.Add(c.period)) {
		s.PeriodStart = now.Truncate(c.period)
		s.Passed = 0
		s.Blocked = 0
	}
	return s
}

// Idle reports whether the counter has not been touched for at least
// periods full periods. A counter that was never used is idle.
func (c *Counter) Idle(now time.Time, periods int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idleLocked(now, periods)
}

// RetireIfIdle marks the counter retired when it is idle, so that any caller
// still holding it retries against a fresh counter. It reports whether the
// counter was retired.
func (c *Counter) RetireIfIdle(now time.Time, periods int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.idleLocked(now, periods) {
		return false
	}
	c.retired = true
	return true
}

// Retire marks the counter retired unconditionally.
func (c *Counter) Retire() {
	c.mu.Lock()
	c.retired = true
	c.mu.Unlock()
}

// Reset clears the counter.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.periodStart = time.Time{}
	c.passed = 0
	c.blocked = 0
}

// alignLocked moves the counter to the period containing now.
// Caller must hold the lock.
func (c *Counter) alignLocked(now time.Time, period time.Duration) {
	if period <= 0 {
		period = time.Second
	}

	if c.period != period {
		c.period = period
		c.periodStart = now.Truncate(period)
		c.passed = 0
		c.blocked = 0
		return
	}

	if !now.Before(c.periodStart.Add(period)) {
		c.periodStart = now.Truncate(period)
		c.passed = 0
		c.blocked = 0
	}
}

// idleLocked reports idleness. Caller must hold the lock.
func (c *Counter) idleLocked(now time.Time, periods int) bool {
	if c.lastAccess.IsZero() || c.period <= 0 {
		return true
	}
	if periods < 1 {
		periods = 1
	}
	return now.Sub(c.lastAccess) >= time.Duration(periods)*c.period
}
