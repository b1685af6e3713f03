package tps

import (
	"encoding/json"
	"fmt"
	"time"
)

// RuleDoc is the serialized form of a Rule. Period uses Go duration syntax,
// for example "1s" or "500ms". Model is accepted as an alias of Mode.
type RuleDoc struct {
	MaxCount *int64 `json:"max_count" yaml:"max_count"`
	Period   string `json:"period,omitempty" yaml:"period,omitempty"`
	Mode     string `json:"mode,omitempty" yaml:"mode,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	Action   string `json:"action,omitempty" yaml:"action,omitempty"`
}

// PatternRuleDoc is the serialized form of a monitor key rule.
type PatternRuleDoc struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	RuleDoc `yaml:",inline"`
}

// ControlRuleDoc is the serialized form of a ControlRule.
type ControlRuleDoc struct {
	PointRule       *RuleDoc         `json:"point_rule,omitempty" yaml:"point_rule,omitempty"`
	MonitorKeyRules []PatternRuleDoc `json:"monitor_key_rules,omitempty" yaml:"monitor_key_rules,omitempty"`
}

// Rule converts the document to a validated Rule. A missing period means one
// second, a missing mode SUM and a missing action intercept.
func (d RuleDoc) Rule() (Rule, error) {
	if d.MaxCount == nil {
		return Rule{}, &RuleError{Field: "max_count", Err: fmt.Errorf("%w: required", ErrInvalidRule)}
	}

	period := time.Second
	if d.Period != "" {
		p, err := time.ParseDuration(d.Period)
		if err != nil {
			return Rule{}, &RuleError{Field: "period", Err: fmt.Errorf("%w: %v", ErrInvalidRule, err)}
		}
		period = p
	}

	mode := d.Mode
	if mode == "" {
		mode = d.Model
	} else if d.Model != "" && d.Model != d.Mode {
		return Rule{}, &RuleError{Field: "mode", Err: fmt.Errorf("%w: mode %q and model %q disagree", ErrInvalidRule, d.Mode, d.Model)}
	}
	if mode == "" {
		mode = string(ModeSum)
	}
	action := d.Action
	if action == "" {
		action = string(ActionIntercept)
	}

	return NewRule(*d.MaxCount, period, mode, action)
}

// DocFromRule converts a Rule to its serialized form.
func DocFromRule(r Rule) RuleDoc {
	maxCount := r.MaxCount
	return RuleDoc{
		MaxCount: &maxCount,
		Period:   r.Period.String(),
		Mode:     string(r.Mode),
		Action:   string(r.Action),
	}
}

// ControlRule converts the document to a validated ControlRule. Pattern
// order is preserved. A pattern listed twice keeps its first position and
// its last rule.
func (d ControlRuleDoc) ControlRule() (*ControlRule, error) {
	out := NewControlRule()
	if d.PointRule != nil {
		r, err := d.PointRule.Rule()
		if err != nil {
			return nil, err
		}
		out.SetPointRule(r)
	}
	for _, pr := range d.MonitorKeyRules {
		if _, err := ParsePattern(pr.Pattern); err != nil {
			return nil, err
		}
		r, err := pr.RuleDoc.Rule()
		if err != nil {
			return nil, withPattern(err, pr.Pattern)
		}
		out.SetMonitorKeyRule(pr.Pattern, r)
	}
	return out, nil
}

// Doc returns the serialized form of the control rule.
func (c *ControlRule) Doc() ControlRuleDoc {
	var d ControlRuleDoc
	if c.PointRule != nil {
		pr := DocFromRule(*c.PointRule)
		d.PointRule = &pr
	}
	for _, kr := range c.keyRules {
		d.MonitorKeyRules = append(d.MonitorKeyRules, PatternRuleDoc{
			Pattern: kr.Pattern,
			RuleDoc: DocFromRule(kr.Rule),
		})
	}
	return d
}

// MarshalJSON implements json.Marshaler.
func (c *ControlRule) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Doc())
}

// UnmarshalJSON implements json.Unmarshaler. The decoded rule is validated.
func (c *ControlRule) UnmarshalJSON(data []byte) error {
	var d ControlRuleDoc
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	rule, err := d.ControlRule()
	if err != nil {
		return err
	}
	*c = *rule
	return nil
}
