// Package sweep evicts idle TPS counters on a cron schedule.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs a sweep every ten seconds.
const DefaultSchedule = "@every 10s"

// Sweeper evicts idle counters and reports how many were removed.
// *tps.Manager satisfies it.
type Sweeper interface {
	Sweep(now time.Time) int
}

// clock is implemented by sweepers that carry their own time source. The
// scheduler sweeps with that clock instead of the wall clock.
type clock interface {
	Now() time.Time
}

// Scheduler runs Sweeper.Sweep on a cron schedule.
type Scheduler struct {
	sweeper  Sweeper
	schedule string
	now      func() time.Time
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewScheduler creates a sweep scheduler. An empty schedule disables it.
// Schedules use standard cron syntax or descriptors such as "@every 10s".
func NewScheduler(sweeper Sweeper, schedule string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if c, ok := sweeper.(clock); ok {
		now = c.Now
	}
	return &Scheduler{
		sweeper:  sweeper,
		schedule: schedule,
		now:      now,
		cron:     cron.New(),
		logger:   logger.With("component", "tps.sweep"),
	}
}

// Validate checks the schedule expression.
func Validate(schedule string) error {
	if schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return nil
}

// Start schedules the sweep job. The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("sweep schedule not configured, idle counters are kept")
		return nil
	}
	if err := Validate(s.schedule); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(s.schedule, s.RunOnce); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("sweep scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// RunOnce performs one sweep immediately.
func (s *Scheduler) RunOnce() {
	start := time.Now()
	evicted := s.sweeper.Sweep(s.now())

	if evicted > 0 {
		s.logger.Debug("sweep completed",
			"evicted", evicted,
			"duration", time.Since(start),
		)
	}
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("sweep scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled sweep time, or nil if not scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
