package tps

import (
	"fmt"
	"sort"
	"strings"
)

const (
	patternSeparator = ":"
	wildcard         = "*"
)

// Pattern is a parsed "<type>:<glob>" expression.
//
// The glob supports a single wildcard, '*', matching zero or more arbitrary
// characters. Matching is anchored at both ends.
type Pattern struct {
	raw   string
	typ   string
	glob  string
	parts []string // glob split on '*'
}

// ParsePattern parses a pattern string. The type is everything before the
// first ':'; the glob is the rest and may itself contain ':'.
func ParsePattern(s string) (Pattern, error) {
	typ, glob, ok := strings.Cut(s, patternSeparator)
	if !ok {
		return Pattern{}, &RuleError{Pattern: s, Field: "pattern", Err: fmt.Errorf("%w: missing %q separator", ErrInvalidPattern, patternSeparator)}
	}
	if typ == "" {
		return Pattern{}, &RuleError{Pattern: s, Field: "pattern", Err: fmt.Errorf("%w: empty key type", ErrInvalidPattern)}
	}
	if glob == "" {
		return Pattern{}, &RuleError{Pattern: s, Field: "pattern", Err: fmt.Errorf("%w: empty glob", ErrInvalidPattern)}
	}

	return Pattern{
		raw:   s,
		typ:   typ,
		glob:  glob,
		parts: strings.Split(glob, wildcard),
	}, nil
}

// String returns the pattern as written.
func (p Pattern) String() string { return p.raw }

// Type returns the key type the pattern applies to.
func (p Pattern) Type() string { return p.typ }

// Glob returns the glob segment.
func (p Pattern) Glob() string { return p.glob }

// IsCatchAll reports whether the glob is exactly "*".
func (p Pattern) IsCatchAll() bool { return p.glob == wildcard }

// IsLiteral reports whether the glob has no wildcard.
func (p Pattern) IsLiteral() bool { return len(p.parts) == 1 }

// literalLen is the number of non-wildcard characters in the glob.
func (p Pattern) literalLen() int {
	return len(p.glob) - strings.Count(p.glob, wildcard)
}

// Match reports whether the pattern matches the monitor key.
func (p Pattern) Match(k MonitorKey) bool {
	if k == nil || k.Type() != p.typ {
		return false
	}
	return p.matchString(k.Key())
}

// matchString is a full-string glob match with '*' as the only wildcard.
func (p Pattern) matchString(s string) bool {
	if len(p.parts) == 1 {
		return s == p.parts[0]
	}

	first := p.parts[0]
	last := p.parts[len(p.parts)-1]
	if len(s) < len(first)+len(last) {
		return false
	}
	if !strings.HasPrefix(s, first) || !strings.HasSuffix(s, last) {
		return false
	}

	// Middle segments are placed leftmost first.
	rest := s[len(first) : len(s)-len(last)]
	for _, part := range p.parts[1 : len(p.parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	return true
}

// moreSpecific orders two patterns for best-match selection. It returns true
// when a should be tried before b. Registration order breaks ties and is
// handled by the caller through a stable sort.
func moreSpecific(a, b Pattern) bool {
	if a.IsLiteral() != b.IsLiteral() {
		return a.IsLiteral()
	}
	if a.IsCatchAll() != b.IsCatchAll() {
		return b.IsCatchAll()
	}
	return a.literalLen() > b.literalLen()
}

// sortBySpecificity orders entries most specific first, keeping registration
// order for ties.
func sortBySpecificity(entries []*compiledRule) {
	sort.SliceStable(entries, func(i, j int) bool {
		return moreSpecific(entries[i].pattern, entries[j].pattern)
	})
}
