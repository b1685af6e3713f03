package tps

import (
	"fmt"
	"strings"
	"time"
)

// Mode decides how matches of one pattern are grouped into counters.
type Mode string

const (
	// ModeSum budgets all keys matching a pattern jointly, in one counter.
	ModeSum Mode = "SUM"

	// ModeEach budgets every distinct matching key value independently.
	ModeEach Mode = "EACH"
)

// Action decides what happens when a ceiling is exceeded.
type Action string

const (
	// ActionIntercept rejects the request.
	ActionIntercept Action = "intercept"

	// ActionMonitor only records the overflow; the request is admitted.
	ActionMonitor Action = "monitor"
)

// ParseMode parses a mode string, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(ModeSum):
		return ModeSum, nil
	case string(ModeEach):
		return ModeEach, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidRule, s)
	}
}

// ParseAction parses an action string, case-insensitively.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ActionIntercept):
		return ActionIntercept, nil
	case string(ActionMonitor):
		return ActionMonitor, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidRule, s)
	}
}

// Rule is a budget: at most MaxCount requests per Period.
type Rule struct {
	MaxCount int64
	Period   time.Duration
	Mode     Mode
	Action   Action
}

// NewRule builds and validates a rule from its string form.
//
// Example:
//
//	rule, err := tps.NewRule(500, time.Second, "EACH", "intercept")
func NewRule(maxCount int64, period time.Duration, mode, action string) (Rule, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return Rule{}, &RuleError{Field: "mode", Err: err}
	}
	a, err := ParseAction(action)
	if err != nil {
		return Rule{}, &RuleError{Field: "action", Err: err}
	}

	r := Rule{MaxCount: maxCount, Period: period, Mode: m, Action: a}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// MustRule is like NewRule but panics on error. Intended for tests and
// static rule tables.
func MustRule(maxCount int64, period time.Duration, mode, action string) Rule {
	r, err := NewRule(maxCount, period, mode, action)
	if err != nil {
		panic(err)
	}
	return r
}

// Validate checks the rule fields.
func (r Rule) Validate() error {
	if r.MaxCount < 0 {
		return &RuleError{Field: "max_count", Err: fmt.Errorf("%w: must be >= 0, got %d", ErrInvalidRule, r.MaxCount)}
	}
	if r.Period <= 0 {
		return &RuleError{Field: "period", Err: fmt.Errorf("%w: must be > 0, got %s", ErrInvalidRule, r.Period)}
	}
	if r.Mode != ModeSum && r.Mode != ModeEach {
		return &RuleError{Field: "mode", Err: fmt.Errorf("%w: unknown mode %q", ErrInvalidRule, r.Mode)}
	}
	if r.Action != ActionIntercept && r.Action != ActionMonitor {
		return &RuleError{Field: "action", Err: fmt.Errorf("%w: unknown action %q", ErrInvalidRule, r.Action)}
	}
	return nil
}

// Intercepts reports whether exceeding the rule rejects the request.
func (r Rule) Intercepts() bool { return r.Action == ActionIntercept }

// String formats the rule for logs.
func (r Rule) String() string {
	return fmt.Sprintf("%d/%s %s %s", r.MaxCount, r.Period, r.Mode, r.Action)
}

// PatternRule pairs a pattern string with its rule.
type PatternRule struct {
	Pattern string
	Rule    Rule
}

// ControlRule is the complete policy for one monitor point: an optional
// point-wide rule plus ordered, pattern-keyed monitor key rules.
//
// A ControlRule is a plain value while it is being built. Once handed to
// MonitorPoint.ApplyRule it is compiled into an immutable snapshot, so
// later changes to the ControlRule do not affect the point.
type ControlRule struct {
	// PointRule budgets the whole point. Nil means no point-wide budget.
	PointRule *Rule

	keyRules []PatternRule
	index    map[string]int
}

// NewControlRule creates an empty control rule.
func NewControlRule() *ControlRule {
	return &ControlRule{index: make(map[string]int)}
}

// SetPointRule sets the point-wide rule.
func (c *ControlRule) SetPointRule(r Rule) *ControlRule {
	c.PointRule = &r
	return c
}

// SetMonitorKeyRule registers a rule for a pattern. Registering an existing
// pattern replaces its rule and keeps its original registration position.
func (c *ControlRule) SetMonitorKeyRule(pattern string, r Rule) *ControlRule {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if i, ok := c.index[pattern]; ok {
		c.keyRules[i].Rule = r
		return c
	}
	c.index[pattern] = len(c.keyRules)
	c.keyRules = append(c.keyRules, PatternRule{Pattern: pattern, Rule: r})
	return c
}

// RemoveMonitorKeyRule removes the rule for a pattern, if present.
func (c *ControlRule) RemoveMonitorKeyRule(pattern string) {
	i, ok := c.index[pattern]
	if !ok {
		return
	}
	c.keyRules = append(c.keyRules[:i], c.keyRules[i+1:]...)
	delete(c.index, pattern)
	for j := i; j < len(c.keyRules); j++ {
		c.index[c.keyRules[j].Pattern] = j
	}
}

// MonitorKeyRule returns the rule registered for a pattern.
func (c *ControlRule) MonitorKeyRule(pattern string) (Rule, bool) {
	i, ok := c.index[pattern]
	if !ok {
		return Rule{}, false
	}
	return c.keyRules[i].Rule, true
}

// MonitorKeyRules returns the monitor key rules in registration order.
func (c *ControlRule) MonitorKeyRules() []PatternRule {
	out := make([]PatternRule, len(c.keyRules))
	copy(out, c.keyRules)
	return out
}

// Len returns the number of monitor key rules.
func (c *ControlRule) Len() int { return len(c.keyRules) }

// Validate checks the point rule and every pattern and rule.
func (c *ControlRule) Validate() error {
	if c.PointRule != nil {
		if err := c.PointRule.Validate(); err != nil {
			return withPattern(err, "")
		}
	}
	for _, pr := range c.keyRules {
		if _, err := ParsePattern(pr.Pattern); err != nil {
			return err
		}
		if err := pr.Rule.Validate(); err != nil {
			return withPattern(err, pr.Pattern)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (c *ControlRule) Clone() *ControlRule {
	out := NewControlRule()
	if c.PointRule != nil {
		r := *c.PointRule
		out.PointRule = &r
	}
	for _, pr := range c.keyRules {
		out.SetMonitorKeyRule(pr.Pattern, pr.Rule)
	}
	return out
}

func withPattern(err error, pattern string) error {
	if re, ok := err.(*RuleError); ok {
		cp := *re
		cp.Pattern = pattern
		return &cp
	}
	return err
}
