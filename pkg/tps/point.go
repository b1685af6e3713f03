package tps

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/tollgate/pkg/tps/window"
)

// MonitorPoint owns the rule and the counters for one request type.
//
// # Evaluation
//
// Every call to ApplyTps reads the current rule snapshot exactly once, then:
//
//  1. Checks the point rule against the point's single counter
//  2. Picks the most specific matching pattern for each monitor key
//  3. Checks each selected pattern's counter (one per pattern for SUM,
//     one per matched key for EACH)
//  4. Rejects if any intercepting rule's ceiling was exceeded
//
// All counters involved are updated whatever the final verdict, so monitor
// rules and other dimensions reflect offered load.
//
// # Thread Safety
//
// MonitorPoint is safe for concurrent use. Rule replacement is a single
// atomic pointer swap and never blocks evaluation. Counters are stored in a
// sync.Map and each counter has its own lock.
type MonitorPoint struct {
	name string
	opts options

	current atomic.Pointer[snapshot]
	version atomic.Uint64

	counters sync.Map // counterKey -> *window.Counter
	size     atomic.Int64
}

// counterKey identifies one counter. The point counter has an empty pattern.
type counterKey struct {
	pattern string
	key     string
	each    bool
}

// compiledRule is a monitor key rule ready for matching.
type compiledRule struct {
	pattern Pattern
	rule    Rule
}

// snapshot is an immutable, compiled ControlRule.
type snapshot struct {
	version  uint64
	source   *ControlRule
	point    *Rule
	byType   map[string][]*compiledRule
	patterns map[string]Rule
}

// match returns the most specific rule matching k, or nil.
func (s *snapshot) match(k MonitorKey) *compiledRule {
	for _, cr := range s.byType[k.Type()] {
		if cr.pattern.matchString(k.Key()) {
			return cr
		}
	}
	return nil
}

// owns reports whether a counter still belongs to this rule set.
func (s *snapshot) owns(k counterKey) bool {
	if k.pattern == "" {
		return s.point != nil
	}
	r, ok := s.patterns[k.pattern]
	if !ok {
		return false
	}
	return (r.Mode == ModeEach) == k.each
}

// Check is the outcome of one rule within a decision.
type Check struct {
	// Pattern is the matched pattern, empty for the point rule.
	Pattern string

	// Key is the matched key value, empty for the point rule.
	Key string

	// Rule is the rule that was checked.
	Rule Rule

	// Admitted is false when the rule's ceiling was exceeded.
	Admitted bool

	// Count is the admitted count in the current period.
	Count int64
}

// Decision is the full result of one evaluation.
type Decision struct {
	Point        string
	ConnectionID string
	Allowed      bool
	RuleVersion  uint64
	Checks       []Check
}

// Rejection returns the first intercepting check whose ceiling was exceeded.
func (d Decision) Rejection() (Check, bool) {
	for _, c := range d.Checks {
		if !c.Admitted && c.Rule.Intercepts() {
			return c, true
		}
	}
	return Check{}, false
}

// NewMonitorPoint creates a point with no rule. A point without a rule
// admits every request.
func NewMonitorPoint(name string, opts ...Option) *MonitorPoint {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("component", "tps.point", "point", name)

	return &MonitorPoint{
		name: name,
		opts: o,
	}
}

// Name returns the point name.
func (p *MonitorPoint) Name() string {
	return p.name
}

// ApplyRule validates rule and atomically replaces the point's current rule.
//
// Counters for patterns that survive the swap keep their state. Counters for
// removed patterns, or whose mode changed, are left for the next Sweep. A nil
// rule removes all budgets.
func (p *MonitorPoint) ApplyRule(rule *ControlRule) error {
	if rule == nil {
		p.current.Store(nil)
		p.opts.metrics.recordRuleSwap(p.name)
		p.opts.logger.Info("tps rule cleared")
		return nil
	}

	if err := rule.Validate(); err != nil {
		return fmt.Errorf("point %s: %w", p.name, err)
	}

	snap, err := compile(rule.Clone())
	if err != nil {
		return fmt.Errorf("point %s: %w", p.name, err)
	}
	snap.version = p.version.Add(1)
	p.current.Store(snap)

	p.opts.metrics.recordRuleSwap(p.name)
	p.opts.logger.Info("tps rule applied",
		"version", snap.version,
		"point_rule", pointRuleString(snap.point),
		"monitor_key_rules", len(snap.patterns),
	)
	return nil
}

// Rule returns a copy of the current rule, or nil if none is applied.
func (p *MonitorPoint) Rule() *ControlRule {
	snap := p.current.Load()
	if snap == nil {
		return nil
	}
	return snap.source.Clone()
}

// RuleVersion returns the version of the current rule, 0 if none.
func (p *MonitorPoint) RuleVersion() uint64 {
	if snap := p.current.Load(); snap != nil {
		return snap.version
	}
	return 0
}

// ApplyTps evaluates one request and reports whether it is admitted.
func (p *MonitorPoint) ApplyTps(connectionID string, keys []MonitorKey) bool {
	return p.Evaluate(connectionID, keys).Allowed
}

// Evaluate evaluates one request and returns the full decision.
func (p *MonitorPoint) Evaluate(connectionID string, keys []MonitorKey) Decision {
	snap := p.current.Load()
	d := Decision{
		Point:        p.name,
		ConnectionID: connectionID,
		Allowed:      true,
	}
	if snap == nil {
		p.opts.metrics.recordCheck(p.name, true)
		return d
	}
	d.RuleVersion = snap.version
	now := p.opts.now()

	if snap.point != nil {
		res := p.acquire(counterKey{}, now, *snap.point)
		d.add(Check{Rule: *snap.point, Admitted: res.Admitted, Count: res.Count})
	}

	for _, k := range keys {
		if k == nil {
			continue
		}
		cr := snap.match(k)
		if cr == nil {
			continue
		}

		ck := counterKey{pattern: cr.pattern.raw}
		if cr.rule.Mode == ModeEach {
			ck.key = k.Key()
			ck.each = true
		}
		res := p.acquire(ck, now, cr.rule)
		d.add(Check{
			Pattern:  cr.pattern.raw,
			Key:      k.Key(),
			Rule:     cr.rule,
			Admitted: res.Admitted,
			Count:    res.Count,
		})
	}

	p.observe(d)
	return d
}

func (d *Decision) add(c Check) {
	d.Checks = append(d.Checks, c)
	if !c.Admitted && c.Rule.Intercepts() {
		d.Allowed = false
	}
}

// observe records metrics and logs for a decision.
func (p *MonitorPoint) observe(d Decision) {
	p.opts.metrics.recordCheck(p.name, d.Allowed)
	for _, c := range d.Checks {
		if c.Admitted {
			continue
		}
		p.opts.metrics.recordExceeded(p.name, c.Pattern, c.Rule.Action)
		if !p.opts.logger.Enabled(context.Background(), slog.LevelDebug) {
			continue
		}
		p.opts.logger.Debug("tps ceiling exceeded",
			"connection_id", d.ConnectionID,
			"pattern", c.Pattern,
			"key", c.Key,
			"limit", c.Rule.MaxCount,
			"action", string(c.Rule.Action),
		)
	}
}

// acquire runs one check-and-increment, retrying if the counter was evicted
// between lookup and use.
func (p *MonitorPoint) acquire(k counterKey, now time.Time, r Rule) window.Result {
	for {
		c := p.counter(k)
		res := c.TryAcquire(now, r.MaxCount, r.Period)
		if !res.Retired {
			return res
		}
		if p.counters.CompareAndDelete(k, c) {
			p.size.Add(-1)
		}
	}
}

// counter returns the counter for k, creating it if needed.
func (p *MonitorPoint) counter(k counterKey) *window.Counter {
	if v, ok := p.counters.Load(k); ok {
		return v.(*window.Counter)
	}
	v, loaded := p.counters.LoadOrStore(k, window.NewCounter())
	if !loaded {
		p.size.Add(1)
		p.opts.metrics.setCounters(p.name, p.size.Load())
	}
	return v.(*window.Counter)
}

// CounterCount returns the number of live counters.
func (p *MonitorPoint) CounterCount() int {
	return int(p.size.Load())
}

// Sweep evicts counters that have been idle for the configured number of
// periods, and counters orphaned by a rule swap. It returns the number of
// evicted counters. A request arriving for an evicted key starts from zero.
func (p *MonitorPoint) Sweep(now time.Time) int {
	snap := p.current.Load()
	evicted := 0

	p.counters.Range(func(key, value any) bool {
		k := key.(counterKey)
		c := value.(*window.Counter)

		if snap == nil || !snap.owns(k) {
			c.Retire()
		} else if !c.RetireIfIdle(now, p.opts.idlePeriods) {
			return true
		}

		if p.counters.CompareAndDelete(k, c) {
			p.size.Add(-1)
			evicted++
		}
		return true
	})

	if evicted > 0 {
		p.opts.metrics.recordEvictions(p.name, evicted)
		p.opts.metrics.setCounters(p.name, p.size.Load())
		p.opts.logger.Debug("tps counters evicted", "evicted", evicted, "remaining", p.size.Load())
	}
	return evicted
}

// CounterStat describes one live counter.
type CounterStat struct {
	Pattern string        `json:"pattern"`
	Key     string        `json:"key,omitempty"`
	Passed  int64         `json:"passed"`
	Blocked int64         `json:"blocked"`
	Start   time.Time     `json:"period_start"`
	Period  time.Duration `json:"period_ns"`
}

// Stats returns a snapshot of all live counters, ordered by pattern then key.
func (p *MonitorPoint) Stats() []CounterStat {
	now := p.opts.now()
	var stats []CounterStat

	p.counters.Range(func(key, value any) bool {
		k := key.(counterKey)
		s := value.(*window.Counter).Snapshot(now)
		stats = append(stats, CounterStat{
			Pattern: k.pattern,
			Key:     k.key,
			Passed:  s.Passed,
			Blocked: s.Blocked,
			Start:   s.PeriodStart,
			Period:  s.Period,
		})
		return true
	})

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Pattern != stats[j].Pattern {
			return stats[i].Pattern < stats[j].Pattern
		}
		return stats[i].Key < stats[j].Key
	})
	return stats
}

// compile turns a validated ControlRule into a snapshot.
func compile(rule *ControlRule) (*snapshot, error) {
	snap := &snapshot{
		source:   rule,
		point:    rule.PointRule,
		byType:   make(map[string][]*compiledRule),
		patterns: make(map[string]Rule, rule.Len()),
	}

	for _, pr := range rule.keyRules {
		pattern, err := ParsePattern(pr.Pattern)
		if err != nil {
			return nil, err
		}
		snap.byType[pattern.Type()] = append(snap.byType[pattern.Type()], &compiledRule{
			pattern: pattern,
			rule:    pr.Rule,
		})
		snap.patterns[pr.Pattern] = pr.Rule
	}

	for _, entries := range snap.byType {
		sortBySpecificity(entries)
	}
	return snap, nil
}

func pointRuleString(r *Rule) string {
	if r == nil {
		return "none"
	}
	return r.String()
}
