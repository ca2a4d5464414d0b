// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/AleutianAI/apexlint/services/lint/rules"
	"github.com/AleutianAI/apexlint/services/lint/scanner"
	"github.com/AleutianAI/apexlint/services/lint/source"
)

// Finding is a surviving match with its resolved position and message.
// Lines and columns are 1-based; EndColumn is exclusive.
type Finding struct {
	Rule        string         `json:"rule"`
	Path        string         `json:"path"`
	Line        int            `json:"line"`
	Column      int            `json:"column"`
	EndLine     int            `json:"end_line"`
	EndColumn   int            `json:"end_column"`
	Offset      int            `json:"offset"`
	Length      int            `json:"length"`
	Severity    rules.Severity `json:"severity"`
	Message     string         `json:"message"`
	Description string         `json:"description,omitempty"`
	Source      string         `json:"source"`
	Text        string         `json:"text"`

	ruleIndex int
}

// ProblemKind classifies a file that could not be fully linted.
type ProblemKind string

const (
	// ProblemUnreadable means the file could not be read or decoded.
	ProblemUnreadable ProblemKind = "unreadable"
	// ProblemScanFailed means a rule failed on the file, e.g. a timeout.
	ProblemScanFailed ProblemKind = "scan-failed"
	// ProblemCancelled means the run stopped before the file was linted.
	ProblemCancelled ProblemKind = "cancelled"
)

// Problem is a per-file failure. It is reported separately from findings.
type Problem struct {
	Path    string      `json:"path"`
	Kind    ProblemKind `json:"kind"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
}

// Status summarises a report for the process exit code.
type Status int

const (
	// StatusClean means no findings and no problems.
	StatusClean Status = 0
	// StatusFindings means at least one finding.
	StatusFindings Status = 1
	// StatusProblems means no findings but some files were not linted.
	StatusProblems Status = 2
)

// Report is the result of one run. Treat it as immutable once built.
type Report struct {
	Findings     []Finding      `json:"findings"`
	Passed       bool           `json:"passed"`
	Counts       map[string]int `json:"counts"`
	FilesScanned int            `json:"files_scanned"`
	Suppressed   int            `json:"suppressed"`
	Problems     []Problem      `json:"problems"`
}

// Status returns the report's exit status.
func (r *Report) Status() Status {
	switch {
	case len(r.Findings) > 0:
		return StatusFindings
	case len(r.Problems) > 0:
		return StatusProblems
	default:
		return StatusClean
	}
}

// Filter returns a new report holding the findings for which keep is
// true. Counts and the verdict are recomputed; problems are carried over.
func (r *Report) Filter(keep func(Finding) bool) *Report {
	out := &Report{
		Findings:     []Finding{},
		Counts:       map[string]int{},
		FilesScanned: r.FilesScanned,
		Suppressed:   r.Suppressed,
		Problems:     append([]Problem{}, r.Problems...),
	}
	for _, f := range r.Findings {
		if keep(f) {
			out.Findings = append(out.Findings, f)
			out.Counts[f.Rule]++
		}
	}
	out.Passed = len(out.Findings) == 0
	return out
}

// FileResult is what the pipeline produced for one file. Err is set when
// the file could not be read or scanned; File may then be nil.
type FileResult struct {
	Path       string
	File       *source.File
	Matches    []scanner.Match
	Suppressed []scanner.Match
	Err        error
}

// RuleLookup resolves rule names. *rules.Registry satisfies it.
type RuleLookup interface {
	Lookup(name string) (*rules.Rule, bool)
}

// Aggregator builds reports.
type Aggregator struct {
	lookup RuleLookup
}

// NewAggregator creates an aggregator resolving rules through lookup.
func NewAggregator(lookup RuleLookup) *Aggregator {
	return &Aggregator{lookup: lookup}
}

// Aggregate merges per-file results into one report.
//
// Description:
//
//	Converts each match to a finding through its file's position index,
//	drops duplicates of the same (rule, path, offset), and orders findings
//	by path, line, column and rule registration order. Files that failed
//	become problems. The result does not depend on the order of results.
//
// Inputs:
//
//	results - One entry per file. Not modified.
//
// Outputs:
//
//	*Report - The report. Findings, Counts and Problems are never nil.
//	error - Wraps ErrInternal when a match cannot be located in its file
//	        or names an unknown rule.
func (a *Aggregator) Aggregate(results []FileResult) (*Report, error) {
	rep := &Report{
		Findings: []Finding{},
		Counts:   map[string]int{},
		Problems: []Problem{},
	}

	type key struct {
		rule, path string
		offset     int
	}
	seen := make(map[key]bool)

	for _, res := range results {
		if res.Err != nil {
			rep.Problems = append(rep.Problems, Problem{
				Path:    res.Path,
				Kind:    problemKind(res.Err),
				Message: res.Err.Error(),
				Err:     res.Err,
			})
			continue
		}
		if res.File == nil {
			continue
		}
		rep.FilesScanned++
		rep.Suppressed += len(res.Suppressed)

		for _, m := range res.Matches {
			k := key{m.Rule, res.File.Path(), m.Start}
			if seen[k] {
				continue
			}
			seen[k] = true

			f, err := a.finding(m, res.File)
			if err != nil {
				return nil, err
			}
			rep.Findings = append(rep.Findings, f)
			rep.Counts[f.Rule]++
		}
	}

	sort.SliceStable(rep.Findings, func(i, j int) bool {
		x, y := rep.Findings[i], rep.Findings[j]
		if x.Path != y.Path {
			return x.Path < y.Path
		}
		if x.Line != y.Line {
			return x.Line < y.Line
		}
		if x.Column != y.Column {
			return x.Column < y.Column
		}
		return x.ruleIndex < y.ruleIndex
	})
	sort.SliceStable(rep.Problems, func(i, j int) bool {
		return rep.Problems[i].Path < rep.Problems[j].Path
	})
	rep.Passed = len(rep.Findings) == 0
	return rep, nil
}

func (a *Aggregator) finding(m scanner.Match, f *source.File) (Finding, error) {
	rule, ok := a.lookup.Lookup(m.Rule)
	if !ok {
		return Finding{}, fmt.Errorf("%w: %s: %w: %s", ErrInternal, f.Path(), rules.ErrUnknownRule, m.Rule)
	}

	idx := f.Index()
	start, err := idx.Locate(m.Start)
	if err != nil {
		return Finding{}, fmt.Errorf("%w: %s: rule %s start %d: %w", ErrInternal, f.Path(), m.Rule, m.Start, err)
	}
	end, err := idx.Locate(m.End)
	if err != nil {
		return Finding{}, fmt.Errorf("%w: %s: rule %s end %d: %w", ErrInternal, f.Path(), m.Rule, m.End, err)
	}
	line, err := f.Line(start.Line)
	if err != nil {
		return Finding{}, fmt.Errorf("%w: %s: line %d: %w", ErrInternal, f.Path(), start.Line, err)
	}

	msg := rule.Message(rules.MessageData{
		Path:   f.Path(),
		Text:   m.Text,
		Line:   start.Line,
		Column: start.Column,
	})

	return Finding{
		Rule:        rule.Name(),
		Path:        f.Path(),
		Line:        start.Line,
		Column:      start.Column,
		EndLine:     end.Line,
		EndColumn:   end.Column,
		Offset:      m.Start,
		Length:      m.End - m.Start,
		Severity:    rule.Severity(),
		Message:     msg,
		Description: rule.Description(),
		Source:      line,
		Text:        m.Text,
		ruleIndex:   rule.Index(),
	}, nil
}

func problemKind(err error) ProblemKind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ProblemCancelled
	case errors.Is(err, scanner.ErrMatchFailed):
		return ProblemScanFailed
	default:
		return ProblemUnreadable
	}
}
