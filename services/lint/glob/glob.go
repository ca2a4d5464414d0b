// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package glob matches slash-separated paths against include and exclude
// patterns. It is used for file discovery and for per-rule filename
// filters.
package glob

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Default discovery patterns for Apex sources.
var (
	// DefaultIncludes selects Apex classes and triggers.
	DefaultIncludes = []string{
		"**/*.cls",
		"**/*.trigger",
	}

	// DefaultExcludes skips VCS metadata, dependency trees and
	// Salesforce tooling caches.
	DefaultExcludes = []string{
		".git/**",
		"node_modules/**",
		".sfdx/**",
		".sf/**",
	}
)

// Matcher provides path matching against include/exclude patterns.
//
// Patterns use glob syntax:
//   - * matches any sequence of non-separator characters
//   - ** as a whole segment matches zero or more segments
//   - ? matches any single non-separator character
//   - [abc] matches one of the characters in brackets
//
// A pattern without a separator matches the final path element, so
// "*Test.cls" matches "src/classes/FooTest.cls". A pattern with a separator
// is anchored at the right of the path, so "classes/*.cls" matches
// "force-app/main/classes/Foo.cls".
//
// Thread Safety: Matcher is safe for concurrent use after creation.
type Matcher struct {
	includes []string
	excludes []string
}

// New creates a matcher, rejecting malformed patterns.
//
// If includes is empty, every path not excluded is matched.
func New(includes, excludes []string) (*Matcher, error) {
	for _, p := range append(append([]string{}, includes...), excludes...) {
		if err := Validate(p); err != nil {
			return nil, err
		}
	}
	return &Matcher{
		includes: clean(includes),
		excludes: clean(excludes),
	}, nil
}

// MustNew is New for patterns known to be valid.
func MustNew(includes, excludes []string) *Matcher {
	m, err := New(includes, excludes)
	if err != nil {
		panic(err)
	}
	return m
}

// Validate reports whether pattern is well formed.
func Validate(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("empty glob pattern")
	}
	for _, seg := range strings.Split(filepath.ToSlash(pattern), "/") {
		if seg == "**" {
			continue
		}
		if _, err := path.Match(seg, ""); err != nil {
			return fmt.Errorf("glob pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// Match returns true if the path is included and not excluded.
func (m *Matcher) Match(p string) bool {
	p = normalize(p)
	if MatchAny(m.excludes, p) {
		return false
	}
	if len(m.includes) == 0 {
		return true
	}
	return MatchAny(m.includes, p)
}

// Excluded returns true if the path matches an exclude pattern.
func (m *Matcher) Excluded(p string) bool {
	return MatchAny(m.excludes, normalize(p))
}

// MatchAny returns true if p matches at least one pattern.
func MatchAny(patterns []string, p string) bool {
	p = normalize(p)
	for _, pattern := range patterns {
		if Match(pattern, p) {
			return true
		}
	}
	return false
}

// Match matches a single pattern against a path.
func Match(pattern, p string) bool {
	pattern = filepath.ToSlash(pattern)
	p = normalize(p)

	if !strings.Contains(pattern, "/") {
		ok, _ := path.Match(pattern, path.Base(p))
		return ok
	}

	pat := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	segs := strings.Split(p, "/")
	if strings.HasPrefix(pattern, "/") || pat[0] == "**" {
		return matchSegments(pat, segs)
	}
	for i := range segs {
		if matchSegments(pat, segs[i:]) {
			return true
		}
	}
	return false
}

// matchSegments matches pattern segments against path segments, letting
// a "**" segment absorb any number of path segments.
func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], segs[0]); !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}

func normalize(p string) string {
	p = filepath.ToSlash(p)
	p = strings.TrimPrefix(p, "./")
	return strings.TrimPrefix(p, "/")
}

func clean(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, filepath.ToSlash(strings.TrimSpace(p)))
	}
	return out
}
