// Package selector filters service instances by the metadata attached to
// them in an external CMDB.
//
// A Selector is parsed from a condition string and then applied to a
// Context holding the consumer and the candidate providers:
//
//	sel, err := selector.NewLabelSelector().Parse("zone=eu-1")
//	chosen := sel.Select(selector.Context{Providers: providers})
package selector

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCondition is returned when a condition string cannot be parsed.
var ErrInvalidCondition = errors.New("selector: invalid condition")

// Instance is a service instance.
type Instance struct {
	IP       string            `json:"ip"`
	Port     int               `json:"port"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Entity is the CMDB record of an instance.
type Entity struct {
	Type   string            `json:"type"`
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
}

// CmdbInstance pairs an instance with its CMDB entity.
type CmdbInstance struct {
	Entity   *Entity   `json:"entity,omitempty"`
	Instance *Instance `json:"instance"`
}

// Context is the input of a selection: the consumer asking and the
// providers to choose from.
type Context struct {
	Consumer  *CmdbInstance  `json:"consumer,omitempty"`
	Providers []CmdbInstance `json:"providers"`
}

// Selector chooses a subset of providers.
type Selector interface {
	// Type names the selector kind.
	Type() string

	// Parse returns a selector configured by condition.
	Parse(condition string) (Selector, error)

	// Select returns the chosen providers. A context without providers
	// yields nil.
	Select(ctx Context) []*Instance
}

// LabelSelectorType is the type of LabelSelector.
const LabelSelectorType = "label"

// LabelSelector keeps the providers whose CMDB labels contain key=value.
type LabelSelector struct {
	key   string
	value string
}

// NewLabelSelector returns an unconfigured label selector.
func NewLabelSelector() *LabelSelector {
	return &LabelSelector{}
}

// Type implements Selector.
func (s *LabelSelector) Type() string { return LabelSelectorType }

// Parse implements Selector. The condition has the form "key=value"; the
// value may be empty but the key may not.
func (s *LabelSelector) Parse(condition string) (Selector, error) {
	key, value, ok := strings.Cut(condition, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return nil, fmt.Errorf("%w: %q, want key=value", ErrInvalidCondition, condition)
	}
	return &LabelSelector{key: key, value: strings.TrimSpace(value)}, nil
}

// Select implements Selector.
func (s *LabelSelector) Select(ctx Context) []*Instance {
	if ctx.Providers == nil {
		return nil
	}

	selected := make([]*Instance, 0, len(ctx.Providers))
	for _, p := range ctx.Providers {
		if p.Entity == nil || p.Entity.Labels == nil {
			continue
		}
		if v, ok := p.Entity.Labels[s.key]; ok && v == s.value {
			selected = append(selected, p.Instance)
		}
	}
	return selected
}

// String returns the condition the selector was parsed from.
func (s *LabelSelector) String() string {
	return s.key + "=" + s.value
}
