package tps

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewRule(t *testing.T) {
	tests := []struct {
		name      string
		maxCount  int64
		period    time.Duration
		mode      string
		action    string
		wantField string
	}{
		{name: "valid", maxCount: 500, period: time.Second, mode: "EACH", action: "intercept"},
		{name: "lowercase mode", maxCount: 1, period: time.Second, mode: "sum", action: "Monitor"},
		{name: "zero ceiling", maxCount: 0, period: time.Second, mode: "SUM", action: "intercept"},
		{name: "negative ceiling", maxCount: -1, period: time.Second, mode: "SUM", action: "intercept", wantField: "max_count"},
		{name: "zero period", maxCount: 1, period: 0, mode: "SUM", action: "intercept", wantField: "period"},
		{name: "bad mode", maxCount: 1, period: time.Second, mode: "ALL", action: "intercept", wantField: "mode"},
		{name: "bad action", maxCount: 1, period: time.Second, mode: "SUM", action: "drop", wantField: "action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRule(tt.maxCount, tt.period, tt.mode, tt.action)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("NewRule() error = %v", err)
				}
				if r.MaxCount != tt.maxCount {
					t.Errorf("MaxCount = %d, want %d", r.MaxCount, tt.maxCount)
				}
				return
			}

			if !errors.Is(err, ErrInvalidRule) {
				t.Fatalf("error = %v, want ErrInvalidRule", err)
			}
			var re *RuleError
			if !errors.As(err, &re) {
				t.Fatalf("error = %v, want *RuleError", err)
			}
			if re.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", re.Field, tt.wantField)
			}
		})
	}
}

func TestMustRulePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustRule should panic on invalid input")
		}
	}()
	MustRule(1, time.Second, "bogus", "intercept")
}

func TestControlRuleOrdering(t *testing.T) {
	rule := NewControlRule().
		SetMonitorKeyRule("content:a*", MustRule(1, time.Second, "SUM", "intercept")).
		SetMonitorKeyRule("content:b*", MustRule(2, time.Second, "SUM", "intercept")).
		SetMonitorKeyRule("content:c*", MustRule(3, time.Second, "SUM", "intercept"))

	// Replacing keeps the original position.
	rule.SetMonitorKeyRule("content:a*", MustRule(10, time.Second, "EACH", "monitor"))

	got := rule.MonitorKeyRules()
	want := []string{"content:a*", "content:b*", "content:c*"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Pattern != want[i] {
			t.Errorf("position %d = %q, want %q", i, got[i].Pattern, want[i])
		}
	}
	if got[0].Rule.MaxCount != 10 || got[0].Rule.Mode != ModeEach {
		t.Errorf("replaced rule = %v", got[0].Rule)
	}

	rule.RemoveMonitorKeyRule("content:b*")
	if rule.Len() != 2 {
		t.Fatalf("Len() = %d after remove, want 2", rule.Len())
	}
	if _, ok := rule.MonitorKeyRule("content:b*"); ok {
		t.Error("removed pattern still present")
	}
	if r, ok := rule.MonitorKeyRule("content:c*"); !ok || r.MaxCount != 3 {
		t.Errorf("MonitorKeyRule(content:c*) = %v, %v", r, ok)
	}
}

func TestControlRuleValidate(t *testing.T) {
	t.Run("bad pattern", func(t *testing.T) {
		rule := NewControlRule().SetMonitorKeyRule("nocolon", MustRule(1, time.Second, "SUM", "intercept"))
		if err := rule.Validate(); !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("Validate() = %v, want ErrInvalidPattern", err)
		}
	})

	t.Run("bad key rule carries pattern", func(t *testing.T) {
		rule := NewControlRule().SetMonitorKeyRule("content:*", Rule{MaxCount: 1, Mode: ModeSum, Action: ActionIntercept})
		err := rule.Validate()
		var re *RuleError
		if !errors.As(err, &re) {
			t.Fatalf("Validate() = %v, want *RuleError", err)
		}
		if re.Pattern != "content:*" || re.Field != "period" {
			t.Errorf("RuleError = %+v", re)
		}
	})

	t.Run("bad point rule", func(t *testing.T) {
		rule := NewControlRule().SetPointRule(Rule{MaxCount: -5, Period: time.Second, Mode: ModeSum, Action: ActionIntercept})
		if err := rule.Validate(); !errors.Is(err, ErrInvalidRule) {
			t.Errorf("Validate() = %v, want ErrInvalidRule", err)
		}
	})
}

func TestControlRuleClone(t *testing.T) {
	orig := NewControlRule().
		SetPointRule(MustRule(5, time.Second, "SUM", "intercept")).
		SetMonitorKeyRule("content:*", MustRule(1, time.Second, "EACH", "intercept"))

	clone := orig.Clone()
	clone.PointRule.MaxCount = 99
	clone.SetMonitorKeyRule("content:*", MustRule(7, time.Second, "SUM", "monitor"))
	clone.SetMonitorKeyRule("group:*", MustRule(1, time.Second, "SUM", "monitor"))

	if orig.PointRule.MaxCount != 5 {
		t.Errorf("original point rule changed: %d", orig.PointRule.MaxCount)
	}
	if r, _ := orig.MonitorKeyRule("content:*"); r.MaxCount != 1 {
		t.Errorf("original key rule changed: %v", r)
	}
	if orig.Len() != 1 {
		t.Errorf("original Len() = %d, want 1", orig.Len())
	}
}

func TestParseUnknownPointPolicy(t *testing.T) {
	for in, want := range map[string]UnknownPointPolicy{
		"":            FailOpen,
		"fail-open":   FailOpen,
		"open":        FailOpen,
		"fail-closed": FailClosed,
		"closed":      FailClosed,
	} {
		got, err := ParseUnknownPointPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseUnknownPointPolicy(%q) = %q, %v", in, got, err)
		}
	}
	_, err := ParseUnknownPointPolicy("maybe")
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("error = %v, want ErrInvalidPolicy", err)
	}
	if errors.Is(err, ErrInvalidRule) {
		t.Error("policy errors should not wrap ErrInvalidRule")
	}
	if err != nil && !strings.Contains(err.Error(), `"maybe"`) {
		t.Errorf("error %q should name the input", err)
	}
}
