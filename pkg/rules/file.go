package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"mercator-hq/tollgate/pkg/tps"
)

// Document is the YAML rule file.
type Document struct {
	Points []PointDoc `yaml:"points"`
}

// PointDoc is one point entry in a rule file.
type PointDoc struct {
	Name               string `yaml:"name"`
	tps.ControlRuleDoc `yaml:",inline"`
}

// RuleSet is a parsed rule file: point names in file order and their rules.
type RuleSet struct {
	Names []string
	Rules map[string]*tps.ControlRule
}

// Len returns the number of points.
func (s *RuleSet) Len() int { return len(s.Names) }

// FieldError describes one invalid point in a rule file.
type FieldError struct {
	Index int
	Point string
	Err   error
}

// Error implements the error interface.
func (e FieldError) Error() string {
	if e.Point == "" {
		return fmt.Sprintf("points[%d]: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("points[%d] (%s): %v", e.Index, e.Point, e.Err)
}

// Unwrap returns the underlying error.
func (e FieldError) Unwrap() error { return e.Err }

// ValidationError collects all errors found in a rule file.
type ValidationError struct {
	Errors []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("invalid rule file: %s", e.Errors[0].Error())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "invalid rule file (%d errors):", len(e.Errors))
	for _, fe := range e.Errors {
		b.WriteString("\n  - ")
		b.WriteString(fe.Error())
	}
	return b.String()
}

// Unwrap returns the individual errors so errors.Is can see the tps sentinels.
func (e *ValidationError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, fe := range e.Errors {
		out[i] = fe
	}
	return out
}

// Load reads and parses a rule file.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Parse parses a YAML rule document. Unknown fields are rejected and every
// invalid point is reported.
func Parse(data []byte) (*RuleSet, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	set := &RuleSet{Rules: make(map[string]*tps.ControlRule, len(doc.Points))}
	var verr ValidationError

	for i, p := range doc.Points {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			verr.Errors = append(verr.Errors, FieldError{Index: i, Err: tps.ErrInvalidPoint})
			continue
		}
		if _, dup := set.Rules[name]; dup {
			verr.Errors = append(verr.Errors, FieldError{Index: i, Point: name, Err: tps.ErrPointExists})
			continue
		}

		rule, err := p.ControlRuleDoc.ControlRule()
		if err != nil {
			verr.Errors = append(verr.Errors, FieldError{Index: i, Point: name, Err: err})
			continue
		}
		set.Names = append(set.Names, name)
		set.Rules[name] = rule
	}

	if len(verr.Errors) > 0 {
		return nil, &verr
	}
	return set, nil
}

// Marshal renders rules as a YAML document in the given point order.
func Marshal(names []string, rules map[string]*tps.ControlRule) ([]byte, error) {
	doc := Document{Points: make([]PointDoc, 0, len(names))}
	for _, name := range names {
		rule, ok := rules[name]
		if !ok || rule == nil {
			continue
		}
		doc.Points = append(doc.Points, PointDoc{Name: name, ControlRuleDoc: rule.Doc()})
	}
	return yaml.Marshal(&doc)
}
