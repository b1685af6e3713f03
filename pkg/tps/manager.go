package tps

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Manager is the registry of monitor points and the single entry point for
// admission checks.
//
// Manager is an ordinary value: create one at startup and pass it to the
// request layer. It is safe for concurrent use.
//
// # Example
//
//	manager := tps.NewManager(tps.WithMetrics(metrics))
//
//	publish := manager.NewPoint("configPublish")
//	rule := tps.NewControlRule().
//	    SetPointRule(tps.MustRule(5000, time.Second, "SUM", "intercept")).
//	    SetMonitorKeyRule("testKey:a*b", tps.MustRule(500, time.Second, "EACH", "intercept"))
//	if err := publish.ApplyRule(rule); err != nil {
//	    return err
//	}
//
//	if !manager.ApplyTps("configPublish", connID, []tps.MonitorKey{tps.NewKey("testKey", dataID)}) {
//	    // reject with a throttling response
//	}
//
// # Unknown points
//
// ApplyTps against a name that was never registered never panics. The
// verdict follows the UnknownPointPolicy (FailOpen by default), a warning is
// logged at most once per warn interval, and a metric is incremented.
//
// # Duplicate registration
//
// Registering a second point under an existing name returns ErrPointExists
// and leaves the first point in place.
type Manager struct {
	opts   options
	logger *slog.Logger

	mu     sync.RWMutex
	points map[string]*MonitorPoint

	warnLimiter *rate.Limiter
}

// NewManager creates an empty manager.
func NewManager(opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager{
		opts:        o,
		logger:      o.logger.With("component", "tps.manager"),
		points:      make(map[string]*MonitorPoint),
		warnLimiter: rate.NewLimiter(rate.Every(o.warnInterval), 1),
	}
}

// NewPoint creates a point that shares the manager's clock, logger, metrics
// and idle period settings, and registers it. If a point with that name is
// already registered, the existing point is returned.
func (m *Manager) NewPoint(name string) *MonitorPoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.points[name]; ok {
		return p
	}
	p := m.newPointLocked(name)
	m.points[name] = p
	return p
}

func (m *Manager) newPointLocked(name string) *MonitorPoint {
	return NewMonitorPoint(name,
		WithClock(m.opts.now),
		WithIdlePeriods(m.opts.idlePeriods),
		WithLogger(m.opts.logger),
		WithMetrics(m.opts.metrics),
	)
}

// RegisterTpsControlPoint adds a point under its name. A duplicate name
// returns ErrPointExists and the registry is left unchanged.
func (m *Manager) RegisterTpsControlPoint(p *MonitorPoint) error {
	if p == nil || p.Name() == "" {
		return ErrInvalidPoint
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.points[p.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrPointExists, p.Name())
	}
	m.points[p.Name()] = p
	m.logger.Info("tps control point registered", "point", p.Name())
	return nil
}

// Point returns the point registered under name.
func (m *Manager) Point(name string) (*MonitorPoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.points[name]
	return p, ok
}

// Points returns the registered point names in sorted order.
func (m *Manager) Points() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.points))
	for name := range m.points {
		names = append(names, name)
	}
	m.mu.RUnlock()

	sort.Strings(names)
	return names
}

// ApplyRule replaces the rule of a registered point.
func (m *Manager) ApplyRule(name string, rule *ControlRule) error {
	p, ok := m.Point(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPointNotFound, name)
	}
	return p.ApplyRule(rule)
}

// ApplyTps evaluates one request against the named point and reports
// whether it is admitted.
func (m *Manager) ApplyTps(pointName, connectionID string, keys []MonitorKey) bool {
	return m.Evaluate(pointName, connectionID, keys).Allowed
}

// Evaluate evaluates one request and returns the full decision. For an
// unknown point the decision carries no checks and Allowed follows the
// unknown point policy.
func (m *Manager) Evaluate(pointName, connectionID string, keys []MonitorKey) Decision {
	p, ok := m.Point(pointName)
	if ok {
		return p.Evaluate(connectionID, keys)
	}

	m.opts.metrics.recordUnknownPoint(m.opts.unknownPolicy)
	if m.warnLimiter.Allow() {
		m.logger.Warn("tps check against unregistered point",
			"point", pointName,
			"connection_id", connectionID,
			"policy", string(m.opts.unknownPolicy),
		)
	}
	return Decision{
		Point:        pointName,
		ConnectionID: connectionID,
		Allowed:      m.opts.unknownPolicy != FailClosed,
	}
}

// Check evaluates one request and returns a *ThrottledError wrapping
// ErrThrottled when it is rejected. The context carries request-scoped
// values only; evaluation never blocks.
func (m *Manager) Check(ctx context.Context, pointName, connectionID string, keys []MonitorKey) error {
	d := m.Evaluate(pointName, connectionID, keys)
	if d.Allowed {
		return nil
	}

	terr := &ThrottledError{Point: pointName, Decision: d}
	if c, ok := d.Rejection(); ok {
		terr.Pattern = c.Pattern
		terr.Limit = c.Rule.MaxCount
	}
	return terr
}

// Sweep evicts idle and orphaned counters across all points and returns the
// total number evicted.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.RLock()
	points := make([]*MonitorPoint, 0, len(m.points))
	for _, p := range m.points {
		points = append(points, p)
	}
	m.mu.RUnlock()

	total := 0
	for _, p := range points {
		total += p.Sweep(now)
	}
	return total
}

// Now returns the manager's current time. The sweep scheduler sweeps with it.
func (m *Manager) Now() time.Time {
	return m.opts.now()
}

// UnknownPointPolicy returns the configured unknown point policy.
func (m *Manager) UnknownPointPolicy() UnknownPointPolicy {
	return m.opts.unknownPolicy
}
