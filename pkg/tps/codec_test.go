package tps

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestControlRuleJSON(t *testing.T) {
	data := []byte(`{
		"point_rule": {"max_count": 5000, "period": "1s", "model": "SUM", "action": "intercept"},
		"monitor_key_rules": [
			{"pattern": "testKey:a*b", "max_count": 500, "mode": "each"},
			{"pattern": "testKey:*", "max_count": 2000000, "period": "1s", "action": "monitor"}
		]
	}`)

	var rule ControlRule
	if err := json.Unmarshal(data, &rule); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if rule.PointRule == nil || rule.PointRule.MaxCount != 5000 || rule.PointRule.Mode != ModeSum {
		t.Errorf("PointRule = %+v", rule.PointRule)
	}
	rules := rule.MonitorKeyRules()
	if len(rules) != 2 || rules[0].Pattern != "testKey:a*b" || rules[1].Pattern != "testKey:*" {
		t.Fatalf("MonitorKeyRules() = %+v", rules)
	}
	if rules[0].Rule.Mode != ModeEach || rules[0].Rule.Period != time.Second || rules[0].Rule.Action != ActionIntercept {
		t.Errorf("defaults not applied: %+v", rules[0].Rule)
	}
	if rules[1].Rule.Action != ActionMonitor {
		t.Errorf("action = %s, want monitor", rules[1].Rule.Action)
	}

	out, err := json.Marshal(&rule)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var again ControlRule
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("Unmarshal(Marshal()) error = %v", err)
	}
	if r, _ := again.MonitorKeyRule("testKey:a*b"); r != rules[0].Rule {
		t.Errorf("rule changed after re-encoding: %+v", r)
	}
}

func TestControlRuleJSONErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"missing max_count", `{"point_rule": {"period": "1s"}}`, ErrInvalidRule},
		{"bad period", `{"point_rule": {"max_count": 1, "period": "soon"}}`, ErrInvalidRule},
		{"bad pattern", `{"monitor_key_rules": [{"pattern": "nocolon", "max_count": 1}]}`, ErrInvalidPattern},
		{"bad mode", `{"monitor_key_rules": [{"pattern": "a:b", "max_count": 1, "mode": "x"}]}`, ErrInvalidRule},
		{"mode and model disagree", `{"point_rule": {"max_count": 1, "mode": "SUM", "model": "EACH"}}`, ErrInvalidRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rule ControlRule
			err := json.Unmarshal([]byte(tt.data), &rule)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRuleDocModeAlias(t *testing.T) {
	one := int64(1)

	r, err := RuleDoc{MaxCount: &one, Mode: "EACH", Model: "EACH"}.Rule()
	if err != nil || r.Mode != ModeEach {
		t.Errorf("matching mode and model: rule = %+v, err = %v", r, err)
	}

	_, err = RuleDoc{MaxCount: &one, Mode: "SUM", Model: "EACH"}.Rule()
	var re *RuleError
	if !errors.As(err, &re) || re.Field != "mode" {
		t.Errorf("conflicting mode and model: err = %v, want a mode RuleError", err)
	}
}
