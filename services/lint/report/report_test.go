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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/apexlint/services/lint/rules"
	"github.com/AleutianAI/apexlint/services/lint/scanner"
	"github.com/AleutianAI/apexlint/services/lint/source"
)

func testRegistry(t *testing.T) *rules.Registry {
	t.Helper()
	reg := rules.NewRegistry()
	reg.MustRegister(
		rules.Definition{
			Name:        "call",
			Summary:     "call to {{.Text}}",
			Description: "line one\nline two",
			Matcher:     rules.Single(`call\(\)`),
		},
		rules.Definition{
			Name:     "long-ab",
			Summary:  "ab found",
			Severity: rules.SeverityWarning,
			Matcher:  rules.Single(`ab`),
		},
		rules.Definition{
			Name:     "short-a",
			Summary:  "a found",
			Severity: rules.SeverityInfo,
			Matcher:  rules.Single(`a(?=b)`),
		},
	)
	return reg
}

func scan(t *testing.T, reg *rules.Registry, path, text string) FileResult {
	t.Helper()
	f := source.FromString(path, text)
	ms, err := scanner.New(reg.Enabled()).Scan(context.Background(), f)
	require.NoError(t, err)
	return FileResult{Path: path, File: f, Matches: ms}
}

func TestAggregate_Empty(t *testing.T) {
	rep, err := NewAggregator(testRegistry(t)).Aggregate(nil)
	require.NoError(t, err)
	assert.True(t, rep.Passed)
	assert.Empty(t, rep.Findings)
	assert.NotNil(t, rep.Findings)
	assert.Empty(t, rep.Counts)
	assert.Equal(t, StatusClean, rep.Status())
}

func TestAggregate_Finding(t *testing.T) {
	reg := testRegistry(t)
	rep, err := NewAggregator(reg).Aggregate([]FileResult{
		scan(t, reg, "Foo.cls", "x;\n  call();\n"),
	})
	require.NoError(t, err)
	require.Len(t, rep.Findings, 1)

	f := rep.Findings[0]
	assert.Equal(t, "call", f.Rule)
	assert.Equal(t, "Foo.cls", f.Path)
	assert.Equal(t, 2, f.Line)
	assert.Equal(t, 3, f.Column)
	assert.Equal(t, 2, f.EndLine)
	assert.Equal(t, 9, f.EndColumn)
	assert.Equal(t, 5, f.Offset)
	assert.Equal(t, 6, f.Length)
	assert.Equal(t, rules.SeverityError, f.Severity)
	assert.Equal(t, "call to call()", f.Message)
	assert.Equal(t, "  call();", f.Source)
	assert.False(t, rep.Passed)
	assert.Equal(t, map[string]int{"call": 1}, rep.Counts)
	assert.Equal(t, 1, rep.FilesScanned)
	assert.Equal(t, StatusFindings, rep.Status())
}

func TestAggregate_Ordering(t *testing.T) {
	reg := testRegistry(t)
	results := []FileResult{
		scan(t, reg, "b.cls", "call();"),
		scan(t, reg, "a.cls", "ab\ncall(); ab"),
	}
	rep, err := NewAggregator(reg).Aggregate(results)
	require.NoError(t, err)

	var got []string
	for _, f := range rep.Findings {
		got = append(got, fmt.Sprintf("%s:%d:%d:%s", f.Path, f.Line, f.Column, f.Rule))
	}
	assert.Equal(t, []string{
		"a.cls:1:1:long-ab",
		"a.cls:1:1:short-a",
		"a.cls:2:1:call",
		"a.cls:2:9:long-ab",
		"a.cls:2:9:short-a",
		"b.cls:1:1:call",
	}, got)
	assert.Equal(t, map[string]int{"call": 2, "long-ab": 2, "short-a": 2}, rep.Counts)
}

func TestAggregate_Deterministic(t *testing.T) {
	reg := testRegistry(t)
	a := scan(t, reg, "a.cls", "ab call()")
	b := scan(t, reg, "b.cls", "call() ab")

	first, err := NewAggregator(reg).Aggregate([]FileResult{a, b})
	require.NoError(t, err)
	second, err := NewAggregator(reg).Aggregate([]FileResult{b, a})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAggregate_Deduplicates(t *testing.T) {
	reg := testRegistry(t)
	res := scan(t, reg, "a.cls", "call()")
	res.Matches = append(res.Matches, res.Matches...)

	rep, err := NewAggregator(reg).Aggregate([]FileResult{res})
	require.NoError(t, err)
	assert.Len(t, rep.Findings, 1)
	assert.Equal(t, 1, rep.Counts["call"])
}

func TestAggregate_Problems(t *testing.T) {
	reg := testRegistry(t)
	results := []FileResult{
		{Path: "z.cls", Err: errors.New("permission denied")},
		{Path: "y.cls", Err: fmt.Errorf("%w: timeout", scanner.ErrMatchFailed)},
		{Path: "x.cls", Err: context.Canceled},
		scan(t, reg, "ok.cls", "nothing here"),
	}
	rep, err := NewAggregator(reg).Aggregate(results)
	require.NoError(t, err)

	require.Len(t, rep.Problems, 3)
	assert.Equal(t, "x.cls", rep.Problems[0].Path)
	assert.Equal(t, ProblemCancelled, rep.Problems[0].Kind)
	assert.Equal(t, ProblemScanFailed, rep.Problems[1].Kind)
	assert.Equal(t, ProblemUnreadable, rep.Problems[2].Kind)
	assert.Equal(t, "permission denied", rep.Problems[2].Message)
	assert.Equal(t, 1, rep.FilesScanned)
	assert.True(t, rep.Passed)
	assert.Equal(t, StatusProblems, rep.Status())
}

func TestAggregate_OutOfRangeIsInternal(t *testing.T) {
	reg := testRegistry(t)
	f := source.FromString("a.cls", "call()")
	res := FileResult{Path: "a.cls", File: f, Matches: []scanner.Match{{Rule: "call", Path: "a.cls", Start: 40, End: 46}}}

	_, err := NewAggregator(reg).Aggregate([]FileResult{res})
	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, source.ErrOutOfRange)
}

func TestAggregate_UnknownRuleIsInternal(t *testing.T) {
	f := source.FromString("a.cls", "call()")
	res := FileResult{Path: "a.cls", File: f, Matches: []scanner.Match{{Rule: "ghost", End: 1}}}

	_, err := NewAggregator(rules.NewRegistry()).Aggregate([]FileResult{res})
	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, rules.ErrUnknownRule)
}

func TestAggregate_CountsSuppressed(t *testing.T) {
	reg := testRegistry(t)
	res := scan(t, reg, "a.cls", "call()")
	res.Suppressed, res.Matches = res.Matches, nil

	rep, err := NewAggregator(reg).Aggregate([]FileResult{res})
	require.NoError(t, err)
	assert.True(t, rep.Passed)
	assert.Equal(t, 1, rep.Suppressed)
}

func TestReport_Filter(t *testing.T) {
	reg := testRegistry(t)
	rep, err := NewAggregator(reg).Aggregate([]FileResult{scan(t, reg, "a.cls", "ab\ncall()")})
	require.NoError(t, err)
	require.Len(t, rep.Findings, 3)

	onlyLine2 := rep.Filter(func(f Finding) bool { return f.Line == 2 })
	assert.Len(t, onlyLine2.Findings, 1)
	assert.Equal(t, map[string]int{"call": 1}, onlyLine2.Counts)
	assert.False(t, onlyLine2.Passed)
	assert.Len(t, rep.Findings, 3)

	none := rep.Filter(func(Finding) bool { return false })
	assert.True(t, none.Passed)
	assert.Equal(t, StatusClean, none.Status())
}
