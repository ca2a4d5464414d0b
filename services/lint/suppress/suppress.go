// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package suppress drops matches that a developer has silenced in source.
//
// A match of a suppressible rule is silenced when its line, or a line
// within Options.Window of it, contains the rule's marker as a literal
// substring. Matches of non-suppressible rules always survive.
package suppress

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/AleutianAI/apexlint/services/lint/rules"
	"github.com/AleutianAI/apexlint/services/lint/scanner"
	"github.com/AleutianAI/apexlint/services/lint/source"
)

// DefaultWindow is the number of lines before and after a match that are
// searched for a marker. Zero searches the matched line only.
const DefaultWindow = 0

// DefaultMarker is used for suppressible rules that do not set their own.
const DefaultMarker = "https://github.com/quantcast/apexlint/blob/master/README.md"

// noqa matches a noqa token inside a // or /* */ comment that is not
// itself inside a string literal.
var noqa = regexp2.MustCompile(
	rules.NotString(`//.*?\bnoqa\b|/\*(?:(?!\*/).)*?\bnoqa\b`),
	regexp2.IgnoreCase|regexp2.Multiline,
)

// RuleLookup resolves a match's rule. *rules.Registry satisfies it.
type RuleLookup interface {
	Lookup(name string) (*rules.Rule, bool)
}

// Options configures a Resolver. The zero value searches the matched line
// for each rule's marker.
type Options struct {
	// Window is the number of neighbouring lines searched on each side.
	Window int

	// NoQA also honours "noqa" comments on suppressible rules.
	NoQA bool

	// Disabled turns suppression off; every match is kept.
	Disabled bool

	// DefaultMarker overrides DefaultMarker.
	DefaultMarker string
}

// Result partitions the resolved matches. Both slices keep input order.
type Result struct {
	Kept       []scanner.Match
	Suppressed []scanner.Match
}

// Resolver decides which matches are silenced.
//
// Thread Safety: Safe for concurrent use.
type Resolver struct {
	lookup RuleLookup
	opts   Options
	noqa   *regexp2.Regexp
}

// NewResolver creates a resolver. A negative window is treated as zero.
func NewResolver(lookup RuleLookup, opts Options) *Resolver {
	if opts.Window < 0 {
		opts.Window = 0
	}
	if opts.DefaultMarker == "" {
		opts.DefaultMarker = DefaultMarker
	}
	return &Resolver{lookup: lookup, opts: opts, noqa: noqa}
}

// Options returns the effective options.
func (r *Resolver) Options() Options {
	return r.opts
}

// Resolve splits matches found in f into kept and suppressed.
//
// Description:
//
//	Each match is judged on its own: the same rule may be silenced on one
//	line and reported on another. Matches of rules that are not
//	suppressible are always kept.
//
// Inputs:
//
//	matches - Raw matches for f. Not modified.
//	f - The file the matches came from.
//
// Outputs:
//
//	Result - New slices; input is never aliased.
//	error - Wraps rules.ErrUnknownRule, source.ErrOutOfRange when a
//	        match lies outside f, or scanner.ErrMatchFailed when the noqa
//	        pattern times out.
func (r *Resolver) Resolve(matches []scanner.Match, f *source.File) (Result, error) {
	var res Result
	for _, m := range matches {
		rule, ok := r.lookup.Lookup(m.Rule)
		if !ok {
			return Result{}, fmt.Errorf("%w: %s", rules.ErrUnknownRule, m.Rule)
		}

		silenced, err := r.silenced(rule, m, f)
		if err != nil {
			return Result{}, err
		}
		if silenced {
			res.Suppressed = append(res.Suppressed, m)
		} else {
			res.Kept = append(res.Kept, m)
		}
	}
	return res, nil
}

func (r *Resolver) silenced(rule *rules.Rule, m scanner.Match, f *source.File) (bool, error) {
	if r.opts.Disabled || !rule.Suppressible() {
		return false, nil
	}

	idx := f.Index()
	pos, err := idx.Locate(m.Start)
	if err != nil {
		return false, fmt.Errorf("match %s at offset %d in %s: %w", m.Rule, m.Start, m.Path, err)
	}

	marker := rule.Marker()
	if marker == "" {
		marker = r.opts.DefaultMarker
	}

	first := max(1, pos.Line-r.opts.Window)
	last := min(idx.LineCount(), pos.Line+r.opts.Window)
	for n := first; n <= last; n++ {
		line, err := f.Line(n)
		if err != nil {
			return false, err
		}
		if strings.Contains(line, marker) {
			return true, nil
		}
		if r.opts.NoQA {
			ok, err := r.noqa.MatchString(line)
			if err != nil {
				return false, fmt.Errorf("%w: noqa on %s line %d: %v", scanner.ErrMatchFailed, m.Path, n, err)
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}
