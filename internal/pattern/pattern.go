// Package pattern matches object descriptors from trace records against
// operator-supplied patterns. Supported forms:
//   - "re:..."  regular expression, unanchored
//   - "@name"   built-in or configured class, expanded when a Set is built
//   - anything containing *, ? or [  glob over the whole descriptor
//   - otherwise a literal that matches anywhere in the descriptor
//
// Literal matching is substring containment because channel markers such as
// "<unix>" are embedded inside the descriptor text.
package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// Kind indicates how a Pattern matches.
type Kind int

const (
	KindLiteral Kind = iota
	KindGlob
	KindRegex
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindGlob:
		return "glob"
	case KindRegex:
		return "regex"
	default:
		return "unknown"
	}
}

// Pattern is a single compiled matcher.
type Pattern struct {
	Raw  string
	Kind Kind

	glob glob.Glob
	re   *regexp.Regexp
}

// Compile compiles one pattern. Class references are rejected here; they
// only make sense inside a Set, which knows the registry.
func Compile(s string) (*Pattern, error) {
	if s == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	if strings.HasPrefix(s, "@") {
		return nil, fmt.Errorf("class reference %q outside a pattern set", s)
	}

	if expr, ok := strings.CutPrefix(s, "re:"); ok {
		if expr == "" {
			return nil, fmt.Errorf("empty regex pattern")
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern: %w", err)
		}
		return &Pattern{Raw: s, Kind: KindRegex, re: re}, nil
	}

	if strings.ContainsAny(s, "*?[") {
		g, err := glob.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern: %w", err)
		}
		return &Pattern{Raw: s, Kind: KindGlob, glob: g}, nil
	}

	return &Pattern{Raw: s, Kind: KindLiteral}, nil
}

// Match reports whether the descriptor matches.
func (p *Pattern) Match(s string) bool {
	switch p.Kind {
	case KindLiteral:
		return strings.Contains(s, p.Raw)
	case KindGlob:
		return p.glob.Match(s)
	case KindRegex:
		return p.re.MatchString(s)
	default:
		return false
	}
}

func (p *Pattern) String() string { return p.Raw }

// Set is an immutable collection of patterns; safe for concurrent use.
type Set struct {
	patterns []*Pattern
}

// NewSet compiles patterns, expanding "@class" references through reg.
// A nil registry uses the built-in classes only.
func NewSet(patterns []string, reg *Registry) (*Set, error) {
	if reg == nil {
		reg = NewRegistry()
	}
	s := &Set{}
	for _, raw := range patterns {
		if name, ok := strings.CutPrefix(raw, "@"); ok {
			members, err := reg.Get(name)
			if err != nil {
				return nil, err
			}
			for _, m := range members {
				p, err := Compile(m)
				if err != nil {
					return nil, fmt.Errorf("class @%s pattern %q: %w", name, m, err)
				}
				s.patterns = append(s.patterns, p)
			}
			continue
		}
		p, err := Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", raw, err)
		}
		s.patterns = append(s.patterns, p)
	}
	return s, nil
}

// Match returns the first pattern that matches s.
func (s *Set) Match(str string) (*Pattern, bool) {
	if s == nil {
		return nil, false
	}
	for _, p := range s.patterns {
		if p.Match(str) {
			return p, true
		}
	}
	return nil, false
}

// MatchAny reports whether any pattern matches s.
func (s *Set) MatchAny(str string) bool {
	_, ok := s.Match(str)
	return ok
}

// Len returns the number of compiled patterns after class expansion.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patterns)
}
