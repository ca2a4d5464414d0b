// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// =============================================================================
// Pattern Flags
// =============================================================================

// Flag modifies how a pattern is compiled. Patterns are case-sensitive
// unless IgnoreCase is set.
type Flag int

const (
	// IgnoreCase matches letters case-insensitively.
	IgnoreCase Flag = 1 << iota

	// Verbose ignores unescaped whitespace in the pattern and allows
	// # comments, so long patterns can be laid out over several lines.
	Verbose

	// Multiline makes ^ and $ match at line boundaries.
	Multiline
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{IgnoreCase, "ignore-case"},
	{Verbose, "verbose"},
	{Multiline, "multiline"},
}

// ParseFlag converts a flag name as used in rule files.
func ParseFlag(name string) (Flag, error) {
	for _, f := range flagNames {
		if f.name == name {
			return f.flag, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown pattern flag %q", ErrInvalidRuleDefinition, name)
}

// String returns the flag names joined with "|".
func (f Flag) String() string {
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

func (f Flag) options() regexp2.RegexOptions {
	var opts regexp2.RegexOptions
	if f&IgnoreCase != 0 {
		opts |= regexp2.IgnoreCase
	}
	if f&Verbose != 0 {
		opts |= regexp2.IgnorePatternWhitespace
	}
	if f&Multiline != 0 {
		opts |= regexp2.Multiline
	}
	return opts
}

// =============================================================================
// Matcher
// =============================================================================

// Kind discriminates the Matcher variants.
type Kind int

const (
	// KindSingle is one regular expression.
	KindSingle Kind = iota

	// KindAllOf is an ordered sequence of matchers that must all occur
	// within a line window of the first.
	KindAllOf

	// KindAnyOf is a union of matchers.
	KindAnyOf
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindAllOf:
		return "all_of"
	case KindAnyOf:
		return "any_of"
	default:
		return "unknown"
	}
}

// Unbounded is an AllOf window without a line limit.
const Unbounded = -1

// CursorGroup names the capture group that narrows a match to the span
// that is reported. Without it the whole match is reported.
const CursorGroup = "cursor"

// Matcher describes what a rule matches: a single pattern, an ordered
// sequence of matchers within a line window, or a union of matchers.
//
// Build matchers with Single, AllOf and AnyOf. Patterns are compiled when
// the owning rule is registered; an unregistered Matcher cannot be
// evaluated.
type Matcher struct {
	kind     Kind
	pattern  string
	flags    Flag
	window   int
	children []Matcher
	re       *regexp2.Regexp
}

// Single matches one regular expression.
func Single(pattern string, flags ...Flag) Matcher {
	var f Flag
	for _, fl := range flags {
		f |= fl
	}
	return Matcher{kind: KindSingle, pattern: pattern, flags: f}
}

// AllOf matches when every child occurs in order, each starting at or
// after the end of the previous one and on a line at most window lines
// after the first child's line. The reported spans are those of the last
// child. A window of 0 means the same line; Unbounded removes the limit.
func AllOf(window int, children ...Matcher) Matcher {
	return Matcher{kind: KindAllOf, window: window, children: children}
}

// AnyOf matches wherever any child matches.
func AnyOf(children ...Matcher) Matcher {
	return Matcher{kind: KindAnyOf, children: children}
}

// Kind returns the variant.
func (m *Matcher) Kind() Kind { return m.kind }

// Pattern returns the source pattern of a Single matcher.
func (m *Matcher) Pattern() string { return m.pattern }

// Flags returns the compile flags of a Single matcher.
func (m *Matcher) Flags() Flag { return m.flags }

// Window returns the line window of an AllOf matcher.
func (m *Matcher) Window() int { return m.window }

// Children returns the children of a composite matcher.
func (m *Matcher) Children() []Matcher { return m.children }

// Regexp returns the compiled pattern of a Single matcher, or nil if the
// matcher has not been compiled.
func (m *Matcher) Regexp() *regexp2.Regexp { return m.re }

// String renders the matcher tree for diagnostics and fingerprints.
func (m *Matcher) String() string {
	switch m.kind {
	case KindSingle:
		return fmt.Sprintf("single(%q,%s)", m.pattern, m.flags)
	default:
		parts := make([]string, len(m.children))
		for i := range m.children {
			parts[i] = m.children[i].String()
		}
		if m.kind == KindAllOf {
			return fmt.Sprintf("all_of(%d,%s)", m.window, strings.Join(parts, ","))
		}
		return fmt.Sprintf("any_of(%s)", strings.Join(parts, ","))
	}
}

// compiled returns a deep copy of m with every pattern compiled.
func (m Matcher) compiled(timeout time.Duration) (Matcher, error) {
	switch m.kind {
	case KindSingle:
		if strings.TrimSpace(m.pattern) == "" {
			return Matcher{}, fmt.Errorf("%w: empty pattern", ErrInvalidRulePattern)
		}
		re, err := regexp2.Compile(m.pattern, m.flags.options())
		if err != nil {
			return Matcher{}, fmt.Errorf("%w: %q: %v", ErrInvalidRulePattern, m.pattern, err)
		}
		if timeout > 0 {
			re.MatchTimeout = timeout
		}
		m.re = re
		return m, nil

	case KindAllOf, KindAnyOf:
		need := 1
		if m.kind == KindAllOf {
			need = 2
			if m.window < Unbounded {
				return Matcher{}, fmt.Errorf("%w: all_of window %d", ErrInvalidRuleDefinition, m.window)
			}
		}
		if len(m.children) < need {
			return Matcher{}, fmt.Errorf("%w: %s needs at least %d matchers, got %d",
				ErrInvalidRuleDefinition, m.kind, need, len(m.children))
		}
		children := make([]Matcher, len(m.children))
		for i, c := range m.children {
			cc, err := c.compiled(timeout)
			if err != nil {
				return Matcher{}, err
			}
			children[i] = cc
		}
		m.children = children
		return m, nil

	default:
		return Matcher{}, fmt.Errorf("%w: unknown matcher kind %d", ErrInvalidRuleDefinition, m.kind)
	}
}
