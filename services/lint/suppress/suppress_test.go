// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package suppress

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/apexlint/services/lint/rules"
	"github.com/AleutianAI/apexlint/services/lint/scanner"
	"github.com/AleutianAI/apexlint/services/lint/source"
	"github.com/AleutianAI/apexlint/services/lint/validators"
)

const mapLine = "  Map<Account, String> m = new Map<Account, String>();"

func mapFile(line5Suffix string) string {
	lines := []string{
		"public class Foo {",
		"",
		"",
		"",
		mapLine + line5Suffix,
		"",
		"",
		"",
		mapLine,
		"}",
	}
	return strings.Join(lines, "\n")
}

func resolve(t *testing.T, reg *rules.Registry, opts Options, text string) (Result, *source.File) {
	t.Helper()
	f := source.FromString("Foo.cls", text)
	ms, err := scanner.New(reg.Enabled()).Scan(context.Background(), f)
	require.NoError(t, err)
	res, err := NewResolver(reg, opts).Resolve(ms, f)
	require.NoError(t, err)
	return res, f
}

func keptLines(t *testing.T, res Result, f *source.File) []int {
	t.Helper()
	var out []int
	for _, m := range res.Kept {
		pos, err := f.Index().Locate(m.Start)
		require.NoError(t, err)
		out = append(out, pos.Line)
	}
	return out
}

func TestResolve_MapKeyScenario(t *testing.T) {
	reg := validators.Default()
	require.NoError(t, reg.Select([]string{validators.ObjectAsMapKey}, nil))

	res, f := resolve(t, reg, Options{}, mapFile(""))
	assert.Equal(t, []int{5, 9}, keptLines(t, res, f))
	assert.Empty(t, res.Suppressed)

	res, f = resolve(t, reg, Options{}, mapFile(" // "+validators.MapsAndSetsMarker))
	assert.Equal(t, []int{9}, keptLines(t, res, f))
	require.Len(t, res.Suppressed, 1)
	assert.Equal(t, "Account", res.Suppressed[0].Text)
}

func TestResolve_Idempotent(t *testing.T) {
	reg := validators.Default()
	marker := " // " + validators.MapsAndSetsMarker

	once, f1 := resolve(t, reg, Options{}, mapFile(marker))
	twice, f2 := resolve(t, reg, Options{}, mapFile(marker+marker))
	assert.Equal(t, keptLines(t, once, f1), keptLines(t, twice, f2))
	assert.Len(t, twice.Suppressed, len(once.Suppressed))

	removed, f3 := resolve(t, reg, Options{}, mapFile(""))
	assert.Equal(t, []int{5, 9}, keptLines(t, removed, f3))
}

func TestResolve_NonSuppressibleAlwaysKept(t *testing.T) {
	reg := validators.Default()
	text := "static testMethod void t() {} // " + DefaultMarker + " noqa"

	res, _ := resolve(t, reg, Options{NoQA: true}, text)
	require.Len(t, res.Kept, 1)
	assert.Equal(t, validators.TestMethodKeyword, res.Kept[0].Rule)
	assert.Empty(t, res.Suppressed)
}

func TestResolve_MarkerOnlyFile(t *testing.T) {
	res, _ := resolve(t, validators.Default(), Options{}, "// "+validators.MapsAndSetsMarker+"\n")
	assert.Empty(t, res.Kept)
	assert.Empty(t, res.Suppressed)
}

func TestResolve_MarkerSelection(t *testing.T) {
	reg := rules.NewRegistry()
	reg.MustRegister(
		rules.Definition{Name: "own-marker", Summary: "x", Suppressible: true, Marker: "ALLOW-X", Matcher: rules.Single(`x\(\)`)},
		rules.Definition{Name: "default-marker", Summary: "y", Suppressible: true, Matcher: rules.Single(`y\(\)`)},
	)

	tests := []struct {
		name string
		opts Options
		text string
		kept []string
	}{
		{"own marker", Options{}, "x(); // ALLOW-X", nil},
		{"other rule's marker", Options{}, "y(); // ALLOW-X", []string{"default-marker"}},
		{"default marker", Options{}, "y(); // " + DefaultMarker, nil},
		{"default does not cover own", Options{}, "x(); // " + DefaultMarker, []string{"own-marker"}},
		{"custom default", Options{DefaultMarker: "OK"}, "y(); // OK", nil},
		{"disabled", Options{Disabled: true}, "x(); // ALLOW-X", []string{"own-marker"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := resolve(t, reg, tt.opts, tt.text)
			var got []string
			for _, m := range res.Kept {
				got = append(got, m.Rule)
			}
			assert.Equal(t, tt.kept, got)
		})
	}
}

func TestResolve_Window(t *testing.T) {
	reg := rules.NewRegistry()
	reg.MustRegister(rules.Definition{Name: "call", Summary: "x", Suppressible: true, Marker: "ALLOW", Matcher: rules.Single(`call\(\)`)})
	text := "// ALLOW\ncall();\n\n\ncall();"

	res, _ := resolve(t, reg, Options{}, text)
	assert.Len(t, res.Kept, 2)

	res, f := resolve(t, reg, Options{Window: 1}, text)
	assert.Equal(t, []int{5}, keptLines(t, res, f))
	assert.Len(t, res.Suppressed, 1)

	res, _ = resolve(t, reg, Options{Window: -3}, text)
	assert.Len(t, res.Kept, 2)
}

func TestResolve_NoQA(t *testing.T) {
	reg := rules.NewRegistry()
	reg.MustRegister(rules.Definition{Name: "call", Summary: "x", Suppressible: true, Matcher: rules.Single(`call\(\)`)})

	tests := []struct {
		name   string
		opts   Options
		text   string
		silent bool
	}{
		{"line comment", Options{NoQA: true}, "call(); // noqa", true},
		{"block comment", Options{NoQA: true}, "call(); /* NOQA */", true},
		{"not enabled", Options{}, "call(); // noqa", false},
		{"inside string", Options{NoQA: true}, "call(); String s = '// noqa';", false},
		{"bare word", Options{NoQA: true}, "call(); noqa", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := resolve(t, reg, tt.opts, tt.text)
			if tt.silent {
				assert.Empty(t, res.Kept)
			} else {
				assert.Len(t, res.Kept, 1)
			}
		})
	}
}

func TestResolve_TestOnlyRulesIgnoreMarkers(t *testing.T) {
	reg := validators.Default()
	text := "@future // " + DefaultMarker + " noqa\n@isTest(SeeAllData=true) // " + DefaultMarker + " noqa\n"
	f := source.FromString("FooTest.cls", text)
	ms, err := scanner.New(reg.Enabled()).Scan(context.Background(), f)
	require.NoError(t, err)

	res, err := NewResolver(reg, Options{NoQA: true}).Resolve(ms, f)
	require.NoError(t, err)
	var kept []string
	for _, m := range res.Kept {
		kept = append(kept, m.Rule)
	}
	assert.ElementsMatch(t, []string{validators.FutureInTest, validators.SeeAllData}, kept)
	assert.Empty(t, res.Suppressed)
}

func TestResolve_NoQATimeout(t *testing.T) {
	reg := rules.NewRegistry()
	reg.MustRegister(rules.Definition{Name: "call", Summary: "x", Suppressible: true, Matcher: rules.Single(`call\(\)`)})

	f := source.FromString("Foo.cls", "call();"+strings.Repeat("a", 40)+"!")
	ms, err := scanner.New(reg.Enabled()).Scan(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, ms, 1)

	r := NewResolver(reg, Options{NoQA: true})
	r.noqa = regexp2.MustCompile(`(a+)+$`, regexp2.None)
	r.noqa.MatchTimeout = time.Millisecond

	_, err = r.Resolve(ms, f)
	assert.ErrorIs(t, err, scanner.ErrMatchFailed)
}

func TestResolve_UnknownRule(t *testing.T) {
	f := source.FromString("Foo.cls", "x")
	_, err := NewResolver(rules.NewRegistry(), Options{}).Resolve([]scanner.Match{{Rule: "ghost", End: 1}}, f)
	assert.ErrorIs(t, err, rules.ErrUnknownRule)
}

func TestResolve_DoesNotAliasInput(t *testing.T) {
	reg := validators.Default()
	f := source.FromString("Foo.cls", mapFile(""))
	ms, err := scanner.New(reg.Enabled()).Scan(context.Background(), f)
	require.NoError(t, err)
	before := append([]scanner.Match(nil), ms...)

	res, err := NewResolver(reg, Options{}).Resolve(ms, f)
	require.NoError(t, err)
	res.Kept[0].Text = "changed"
	assert.Equal(t, before, ms)
}
