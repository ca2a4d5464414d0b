// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"fmt"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/apexlint/services/lint/cache"
	"github.com/AleutianAI/apexlint/services/lint/report"
	"github.com/AleutianAI/apexlint/services/lint/source"
	"github.com/AleutianAI/apexlint/services/lint/suppress"
	"github.com/AleutianAI/apexlint/services/lint/validators"
	"github.com/AleutianAI/apexlint/services/lint/walk"
)

const mapKeyLine = "Map<Account, Integer> m = new Map<Account, Integer>();\n"

// cancellingSource cancels the run on the first read.
type cancellingSource struct {
	*walk.Memory
	cancel context.CancelFunc
}

func (s *cancellingSource) Paths(_ context.Context) ([]string, error) {
	return s.Memory.Paths(context.Background())
}

func (s *cancellingSource) Read(path string) (*source.File, error) {
	s.cancel()
	return s.Memory.Read(path)
}

// extraPathSource lists a path the underlying memory source cannot read.
type extraPathSource struct {
	*walk.Memory
	missing string
}

func (s *extraPathSource) Paths(ctx context.Context) ([]string, error) {
	paths, err := s.Memory.Paths(ctx)
	return append(paths, s.missing), err
}

func TestNew_Defaults(t *testing.T) {
	e := New(validators.Default(), WithWorkers(0))
	assert.Equal(t, runtime.NumCPU(), e.Workers())

	e = New(validators.Default(), WithWorkers(3))
	assert.Equal(t, 3, e.Workers())
}

func TestRun(t *testing.T) {
	tests := []struct {
		name       string
		files      map[string]string
		opts       suppress.Options
		findings   int
		suppressed int
		status     report.Status
	}{
		{
			name:   "empty input passes",
			files:  map[string]string{},
			status: report.StatusClean,
		},
		{
			name:   "clean file",
			files:  map[string]string{"A.cls": "Integer x = 1;\n"},
			status: report.StatusClean,
		},
		{
			name:     "map key finding",
			files:    map[string]string{"A.cls": mapKeyLine, "B.cls": "Integer x = 1;\n"},
			findings: 1,
			status:   report.StatusFindings,
		},
		{
			name: "marker silences finding",
			files: map[string]string{
				"A.cls": "Map<Account, Integer> m = new Map<Account, Integer>(); // " + validators.MapsAndSetsMarker + "\n",
			},
			suppressed: 1,
			status:     report.StatusClean,
		},
		{
			name: "disabled suppression keeps finding",
			files: map[string]string{
				"A.cls": "Map<Account, Integer> m = new Map<Account, Integer>(); // " + validators.MapsAndSetsMarker + "\n",
			},
			opts:     suppress.Options{Disabled: true},
			findings: 1,
			status:   report.StatusFindings,
		},
		{
			name:   "marker-only file",
			files:  map[string]string{"A.cls": "// " + validators.MapsAndSetsMarker + "\n"},
			status: report.StatusClean,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(validators.Default(), WithSuppression(tt.opts), WithWorkers(2))
			rep, err := e.Run(context.Background(), walk.NewMemory(tt.files))
			require.NoError(t, err)

			assert.Len(t, rep.Findings, tt.findings)
			assert.Equal(t, tt.suppressed, rep.Suppressed)
			assert.Equal(t, len(tt.files), rep.FilesScanned)
			assert.Empty(t, rep.Problems)
			assert.Equal(t, tt.status, rep.Status())
			assert.Equal(t, tt.findings == 0, rep.Passed)
		})
	}
}

func TestRun_FindingPosition(t *testing.T) {
	e := New(validators.Default())
	rep, err := e.Run(context.Background(), walk.NewMemory(map[string]string{
		"A.cls": "Integer x = 1;\n" + mapKeyLine,
	}))
	require.NoError(t, err)
	require.Len(t, rep.Findings, 1)

	f := rep.Findings[0]
	assert.Equal(t, validators.ObjectAsMapKey, f.Rule)
	assert.Equal(t, "A.cls", f.Path)
	assert.Equal(t, 2, f.Line)
	assert.Equal(t, "Account", f.Text)
	assert.Equal(t, 1, rep.Counts[validators.ObjectAsMapKey])
}

func TestRun_DeterministicAcrossWorkers(t *testing.T) {
	files := make(map[string]string)
	for i := 0; i < 40; i++ {
		content := "Integer x = 1;\n"
		if i%3 == 0 {
			content = mapKeyLine + "Set<Contact> s = new Set<Contact>();\n"
		}
		files[fmt.Sprintf("classes/C%02d.cls", i)] = content
	}

	var reports []*report.Report
	for _, workers := range []int{1, 4, 16} {
		rep, err := New(validators.Default(), WithWorkers(workers)).Run(context.Background(), walk.NewMemory(files))
		require.NoError(t, err)
		reports = append(reports, rep)
	}

	require.NotEmpty(t, reports[0].Findings)
	for _, rep := range reports[1:] {
		assert.Equal(t, reports[0].Findings, rep.Findings)
		assert.Equal(t, reports[0].Counts, rep.Counts)
	}
}

func TestRun_UnreadableFileIsProblem(t *testing.T) {
	src := &extraPathSource{
		Memory:  walk.NewMemory(map[string]string{"A.cls": "Integer x = 1;\n"}),
		missing: "Gone.cls",
	}

	rep, err := New(validators.Default()).Run(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, rep.Problems, 1)
	assert.Equal(t, "Gone.cls", rep.Problems[0].Path)
	assert.Equal(t, report.ProblemUnreadable, rep.Problems[0].Kind)
	assert.Equal(t, 1, rep.FilesScanned)
	assert.Equal(t, report.StatusProblems, rep.Status())
}

func TestRun_CancelledFilesAreProblems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &cancellingSource{
		Memory: walk.NewMemory(map[string]string{
			"A.cls": mapKeyLine,
			"B.cls": mapKeyLine,
			"C.cls": mapKeyLine,
		}),
		cancel: cancel,
	}

	rep, err := New(validators.Default(), WithWorkers(1)).Run(ctx, src)
	require.NoError(t, err)

	assert.Empty(t, rep.Findings)
	require.Len(t, rep.Problems, 3)
	for _, p := range rep.Problems {
		assert.Equal(t, report.ProblemCancelled, p.Kind, p.Path)
	}
	assert.Equal(t, report.StatusProblems, rep.Status())
}

func TestRun_ListError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(validators.Default()).Run(ctx, walk.NewMemory(map[string]string{"A.cls": mapKeyLine}))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Cache(t *testing.T) {
	c, err := cache.Open(cache.InMemoryConfig())
	require.NoError(t, err)
	defer c.Close()

	files := map[string]string{
		"A.cls": mapKeyLine,
		"B.cls": "Map<Account, Integer> m = new Map<Account, Integer>(); // " + validators.MapsAndSetsMarker + "\n",
	}
	e := New(validators.Default(), WithCache(c))

	first, err := e.Run(context.Background(), walk.NewMemory(files))
	require.NoError(t, err)

	n, err := c.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	second, err := e.Run(context.Background(), walk.NewMemory(files))
	require.NoError(t, err)
	assert.Equal(t, first.Findings, second.Findings)
	assert.Equal(t, first.Suppressed, second.Suppressed)
	assert.Equal(t, 1, second.Suppressed)
}

func TestRun_CacheKeyFollowsRuleSet(t *testing.T) {
	c, err := cache.Open(cache.InMemoryConfig())
	require.NoError(t, err)
	defer c.Close()

	files := map[string]string{"A.cls": mapKeyLine}
	reg := validators.Default()
	e := New(reg, WithCache(c))

	rep, err := e.Run(context.Background(), walk.NewMemory(files))
	require.NoError(t, err)
	require.Len(t, rep.Findings, 1)

	require.NoError(t, reg.Disable(validators.ObjectAsMapKey))
	rep, err = e.Run(context.Background(), walk.NewMemory(files))
	require.NoError(t, err)
	assert.Empty(t, rep.Findings)
}

func TestSettings(t *testing.T) {
	a := New(validators.Default()).Settings()
	b := New(validators.Default(), WithSuppression(suppress.Options{NoQA: true})).Settings()
	c := New(validators.Default(), WithSuppression(suppress.Options{Window: 2})).Settings()

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, New(validators.Default()).Settings())
}
