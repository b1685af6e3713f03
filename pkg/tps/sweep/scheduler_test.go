package sweep

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/tollgate/pkg/tps"
)

type countingSweeper struct {
	calls atomic.Int64
}

func (c *countingSweeper) Sweep(time.Time) int {
	c.calls.Add(1)
	return 1
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{name: "every descriptor", schedule: "@every 10s", wantRunning: true},
		{name: "standard cron", schedule: "* * * * *", wantRunning: true},
		{name: "empty schedule - not running", schedule: ""},
		{name: "invalid schedule", schedule: "not a schedule", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(&countingSweeper{}, tt.schedule, nil)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}
			if tt.wantRunning {
				if next := s.NextRun(); next == nil || !next.After(time.Now().Add(-time.Second)) {
					t.Errorf("NextRun() = %v, want a future time", next)
				}
			}
			s.Stop()
			if s.IsRunning() {
				t.Error("scheduler still running after Stop()")
			}
		})
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, "@every 1h", nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Error("scheduler should stop when the context is cancelled")
	}
}

func TestScheduler_RunOnceEvictsIdleCounters(t *testing.T) {
	base := time.Date(2025, 11, 20, 10, 30, 0, 0, time.UTC)
	now := base
	manager := tps.NewManager(tps.WithClock(func() time.Time { return now }))
	manager.NewPoint("publish")
	if err := manager.ApplyRule("publish", tps.NewControlRule().
		SetMonitorKeyRule("connectionId:*", tps.MustRule(10, time.Second, "EACH", "intercept"))); err != nil {
		t.Fatalf("ApplyRule() error = %v", err)
	}
	manager.ApplyTps("publish", "c1", []tps.MonitorKey{tps.ConnectionKey("c1")})

	s := NewScheduler(manager, DefaultSchedule, nil)
	now = base.Add(time.Minute)
	s.RunOnce()

	p, _ := manager.Point("publish")
	if p.CounterCount() != 0 {
		t.Errorf("CounterCount() = %d after sweep, want 0", p.CounterCount())
	}
}

type clockedSweeper struct {
	now  time.Time
	seen time.Time
}

func (c *clockedSweeper) Now() time.Time { return c.now }

func (c *clockedSweeper) Sweep(now time.Time) int {
	c.seen = now
	return 0
}

func TestScheduler_RunOnceUsesSweeperClock(t *testing.T) {
	sw := &clockedSweeper{now: time.Date(2025, 11, 20, 10, 30, 0, 0, time.UTC)}
	NewScheduler(sw, DefaultSchedule, nil).RunOnce()
	if !sw.seen.Equal(sw.now) {
		t.Errorf("Sweep(%v), want the sweeper clock %v", sw.seen, sw.now)
	}

	plain := &countingSweeper{}
	NewScheduler(plain, DefaultSchedule, nil).RunOnce()
	if plain.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", plain.calls.Load())
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("@every 5s"); err != nil {
		t.Errorf("Validate(@every 5s) = %v", err)
	}
	if err := Validate(""); err != nil {
		t.Errorf("Validate(\"\") = %v", err)
	}
	if err := Validate("bogus"); err == nil {
		t.Error("Validate(bogus) should fail")
	}
}
