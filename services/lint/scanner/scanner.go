// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scanner applies rules to one file and produces raw matches.
//
// The scanner is lexical: it evaluates each rule's matcher tree over the
// full file text and never parses the language. It never mutates its
// input, and a failure on one file is returned to the caller rather than
// aborting other files.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dlclark/regexp2"

	"github.com/AleutianAI/apexlint/services/lint/rules"
	"github.com/AleutianAI/apexlint/services/lint/source"
)

// ErrMatchFailed is returned when evaluating a pattern fails, usually
// because it exceeded its match timeout.
var ErrMatchFailed = errors.New("pattern evaluation failed")

// Match is one rule firing at one location, before suppression.
//
// Start and End are rune offsets of the reported span: the cursor group
// when the pattern defines one, otherwise the whole match.
type Match struct {
	Rule      string `json:"rule"`
	RuleIndex int    `json:"rule_index"`
	Path      string `json:"path"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Text      string `json:"text"`
}

// Scanner evaluates a fixed, ordered set of rules.
//
// Thread Safety: Safe for concurrent use; Scan keeps no state between calls.
type Scanner struct {
	rules []*rules.Rule
}

// New creates a scanner for rules, typically Registry.Enabled().
func New(rs []*rules.Rule) *Scanner {
	return &Scanner{rules: append([]*rules.Rule(nil), rs...)}
}

// Rules returns the rules the scanner evaluates.
func (s *Scanner) Rules() []*rules.Rule {
	return append([]*rules.Rule(nil), s.rules...)
}

// Scan applies every rule that applies to the file's path.
//
// Description:
//
//	For each rule in order, evaluates its matcher over the whole text and
//	emits one Match per non-overlapping occurrence, left to right. Empty
//	files produce no matches.
//
// Inputs:
//
//	ctx - Checked between rules.
//	f - The file to scan.
//
// Outputs:
//
//	[]Match - Matches grouped by rule, in text order within a rule.
//	error - Wraps ErrMatchFailed, or the context error.
func (s *Scanner) Scan(ctx context.Context, f *source.File) ([]Match, error) {
	if f.Len() == 0 {
		return nil, nil
	}

	var out []Match
	for _, rule := range s.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !rule.AppliesTo(f.Path()) {
			continue
		}

		occs, err := evaluate(rule.Matcher(), f)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %s on %s: %v", ErrMatchFailed, rule.Name(), f.Path(), err)
		}
		for _, o := range occs {
			text, err := f.Slice(o.start, o.end)
			if err != nil {
				return nil, err
			}
			out = append(out, Match{
				Rule:      rule.Name(),
				RuleIndex: rule.Index(),
				Path:      f.Path(),
				Start:     o.start,
				End:       o.end,
				Text:      text,
			})
		}
	}
	return out, nil
}

// occurrence is one evaluated match. start/end is the reported span;
// from/to is the full match, used to order the members of a sequence.
type occurrence struct {
	start, end int
	from, to   int
}

func evaluate(m *rules.Matcher, f *source.File) ([]occurrence, error) {
	switch m.Kind() {
	case rules.KindSingle:
		return evaluateSingle(m.Regexp(), f)
	case rules.KindAllOf:
		return evaluateAllOf(m, f)
	case rules.KindAnyOf:
		return evaluateAnyOf(m, f)
	default:
		return nil, fmt.Errorf("unknown matcher kind %v", m.Kind())
	}
}

func evaluateSingle(re *regexp2.Regexp, f *source.File) ([]occurrence, error) {
	if re == nil {
		return nil, errors.New("matcher was not compiled")
	}

	var out []occurrence
	match, err := re.FindRunesMatch(f.Runes())
	for match != nil && err == nil {
		o := occurrence{
			start: match.Index,
			end:   match.Index + match.Length,
			from:  match.Index,
			to:    match.Index + match.Length,
		}
		if g := match.GroupByName(rules.CursorGroup); g != nil && len(g.Captures) > 0 {
			o.start, o.end = g.Index, g.Index+g.Length
		}
		out = append(out, o)
		match, err = re.FindNextMatch(match)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// evaluateAllOf anchors on every occurrence of the first child and walks
// the remaining children in order. Middle children take their first
// occurrence after the previous member; the last child reports every
// occurrence after the previous member. All members must start within
// the window of the anchor's line.
func evaluateAllOf(m *rules.Matcher, f *source.File) ([]occurrence, error) {
	children := m.Children()
	occs := make([][]occurrence, len(children))
	for i := range children {
		o, err := evaluate(&children[i], f)
		if err != nil {
			return nil, err
		}
		if len(o) == 0 {
			return nil, nil
		}
		occs[i] = o
	}

	idx := f.Index()
	lineOf := func(offset int) int {
		pos, err := idx.Locate(offset)
		if err != nil {
			return -1
		}
		return pos.Line
	}
	within := func(anchorLine, offset int) bool {
		return m.Window() < 0 || lineOf(offset)-anchorLine <= m.Window()
	}

	var out []occurrence
	last := len(children) - 1
	for _, anchor := range occs[0] {
		anchorLine := lineOf(anchor.from)
		prevEnd := anchor.to
		ok := true
		for i := 1; i < last && ok; i++ {
			ok = false
			for _, o := range occs[i] {
				if o.from < prevEnd {
					continue
				}
				if !within(anchorLine, o.from) {
					break
				}
				prevEnd, ok = o.to, true
				break
			}
		}
		if !ok {
			continue
		}
		for _, o := range occs[last] {
			if o.from < prevEnd {
				continue
			}
			if !within(anchorLine, o.from) {
				break
			}
			out = append(out, o)
		}
	}
	return normalize(out), nil
}

func evaluateAnyOf(m *rules.Matcher, f *source.File) ([]occurrence, error) {
	var out []occurrence
	children := m.Children()
	for i := range children {
		o, err := evaluate(&children[i], f)
		if err != nil {
			return nil, err
		}
		out = append(out, o...)
	}
	return normalize(out), nil
}

// normalize sorts occurrences by reported span and drops duplicates and
// occurrences overlapping an earlier one.
func normalize(occs []occurrence) []occurrence {
	if len(occs) < 2 {
		return occs
	}
	sort.SliceStable(occs, func(i, j int) bool {
		if occs[i].start != occs[j].start {
			return occs[i].start < occs[j].start
		}
		return occs[i].end > occs[j].end
	})
	out := occs[:1]
	for _, o := range occs[1:] {
		prev := out[len(out)-1]
		if o.start < prev.end || (o.start == prev.start && o.end == prev.end) {
			continue
		}
		out = append(out, o)
	}
	return out
}
