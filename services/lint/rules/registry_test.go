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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDef(name, pattern string) Definition {
	return Definition{
		Name:    name,
		Summary: name + " found",
		Matcher: Single(pattern),
	}
}

func TestRegister_Defaults(t *testing.T) {
	reg := NewRegistry()
	rule, err := reg.Register(testDef("no-foo", `foo`))
	require.NoError(t, err)

	assert.Equal(t, "no-foo", rule.Name())
	assert.Equal(t, 0, rule.Index())
	assert.Equal(t, SeverityError, rule.Severity())
	assert.Equal(t, DefaultFilenames, rule.Filenames())
	assert.False(t, rule.Suppressible())
	require.NotNil(t, rule.Matcher().Regexp())
}

func TestRegister_PreservesOrder(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(testDef("zeta", `z`), testDef("alpha", `a`), testDef("mid", `m`))

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, reg.Names())
	for i, rule := range reg.All() {
		assert.Equal(t, i, rule.Index())
	}
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		want error
	}{
		{"bad regex", testDef("bad-regex", `(unclosed`), ErrInvalidRulePattern},
		{"empty pattern", testDef("empty", ``), ErrInvalidRulePattern},
		{"bad name", testDef("Not Kebab", `x`), ErrInvalidRuleDefinition},
		{"missing summary", Definition{Name: "no-summary", Matcher: Single(`x`)}, ErrInvalidRuleDefinition},
		{"bad template", Definition{Name: "bad-tmpl", Summary: "{{.Text", Matcher: Single(`x`)}, ErrInvalidRuleDefinition},
		{"bad glob", Definition{Name: "bad-glob", Summary: "s", Filenames: []string{"[x"}, Matcher: Single(`x`)}, ErrInvalidRuleDefinition},
		{"all_of needs two", Definition{Name: "short-seq", Summary: "s", Matcher: AllOf(3, Single(`x`))}, ErrInvalidRuleDefinition},
		{"any_of needs one", Definition{Name: "empty-union", Summary: "s", Matcher: AnyOf()}, ErrInvalidRuleDefinition},
		{"bad window", Definition{Name: "bad-window", Summary: "s", Matcher: AllOf(-2, Single(`x`), Single(`y`))}, ErrInvalidRuleDefinition},
		{"bad nested pattern", Definition{Name: "nested", Summary: "s", Matcher: AnyOf(Single(`x`), Single(`[`))}, ErrInvalidRulePattern},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			_, err := reg.Register(tt.def)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 0, reg.Len())
		})
	}
}

func TestValidatorInstance_RuleName(t *testing.T) {
	var v1, v2 any
	require.NotPanics(t, func() {
		v1 = validatorInstance()
		v2 = validatorInstance()
	})
	assert.Same(t, v1, v2)

	v := validatorInstance()
	assert.NoError(t, v.Var("object-as-map-key", "rulename"))
	assert.Error(t, v.Var("Not Kebab", "rulename"))
}

func TestRegister_DuplicateName(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register(testDef("dup", `a`))
	require.NoError(t, err)

	_, err = reg.Register(testDef("dup", `b`))
	assert.ErrorIs(t, err, ErrDuplicateRuleName)

	aliased := testDef("other", `c`)
	aliased.Aliases = []string{"dup"}
	_, err = reg.Register(aliased)
	assert.ErrorIs(t, err, ErrDuplicateRuleName)

	assert.Equal(t, 1, reg.Len())
}

func TestRegister_CopiesDefinition(t *testing.T) {
	reg := NewRegistry()
	def := testDef("copied", `a`)
	def.Filenames = []string{"*.cls"}
	rule, err := reg.Register(def)
	require.NoError(t, err)

	def.Filenames[0] = "*.txt"
	assert.Equal(t, []string{"*.cls"}, rule.Filenames())
}

func TestLookup_Alias(t *testing.T) {
	reg := NewRegistry()
	def := testDef("object-as-map-key", `x`)
	def.Aliases = []string{"NoObjectMapKeys"}
	reg.MustRegister(def)

	rule, ok := reg.Lookup("NoObjectMapKeys")
	require.True(t, ok)
	assert.Equal(t, "object-as-map-key", rule.Name())

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
}

func TestEnableDisable(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(testDef("one", `1`), testDef("two", `2`), testDef("three", `3`))

	require.NoError(t, reg.Disable("two"))
	assert.False(t, reg.IsEnabled("two"))
	assert.Equal(t, []string{"one", "three"}, names(reg.Enabled()))
	assert.Len(t, reg.All(), 3)

	require.NoError(t, reg.Enable("two"))
	assert.Equal(t, []string{"one", "two", "three"}, names(reg.Enabled()))

	assert.ErrorIs(t, reg.Disable("nope"), ErrUnknownRule)
	assert.ErrorIs(t, reg.Enable("nope"), ErrUnknownRule)
}

func TestSelect(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(testDef("one", `1`), testDef("two", `2`), testDef("three", `3`))

	require.NoError(t, reg.Select([]string{"one", "three"}, nil))
	assert.Equal(t, []string{"one", "three"}, names(reg.Enabled()))

	require.NoError(t, reg.Select(nil, []string{"one"}))
	assert.Equal(t, []string{"two", "three"}, names(reg.Enabled()))

	require.NoError(t, reg.Select([]string{"one", "two"}, []string{"two"}))
	assert.Equal(t, []string{"one"}, names(reg.Enabled()))

	err := reg.Select([]string{"ghost"}, nil)
	assert.ErrorIs(t, err, ErrUnknownRule)
	assert.Equal(t, []string{"one"}, names(reg.Enabled()), "failed selection must not change state")
}

func TestDescribe(t *testing.T) {
	reg := NewRegistry()
	def := testDef("one", `1`)
	def.Aliases = []string{"First"}
	def.Severity = SeverityWarning
	reg.MustRegister(def, testDef("two", `2`))
	require.NoError(t, reg.Disable("two"))

	infos := reg.Describe()
	require.Len(t, infos, 2)
	assert.Equal(t, "one", infos[0].Name)
	assert.Equal(t, []string{"First"}, infos[0].Aliases)
	assert.Equal(t, SeverityWarning, infos[0].Severity)
	assert.True(t, infos[0].Enabled)
	assert.Equal(t, "one found", infos[0].Summary)
	assert.Contains(t, infos[0].Pattern, `"1"`)
	assert.False(t, infos[1].Enabled)
}

func TestFingerprint(t *testing.T) {
	build := func() *Registry {
		reg := NewRegistry()
		reg.MustRegister(testDef("one", `1`), testDef("two", `2`))
		return reg
	}

	a, b := build(), build()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	require.NoError(t, b.Disable("two"))
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	require.NoError(t, b.Enable("two"))
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestRule_Message(t *testing.T) {
	reg := NewRegistry()
	rule, err := reg.Register(Definition{
		Name:    "templated",
		Summary: "map key {{.Text}} might be mutable ({{.Line}}:{{.Column}})",
		Matcher: Single(`x`),
	})
	require.NoError(t, err)

	msg := rule.Message(MessageData{Text: "Account", Line: 5, Column: 30})
	assert.Equal(t, "map key Account might be mutable (5:30)", msg)
}

func TestRule_AppliesTo(t *testing.T) {
	reg := NewRegistry()
	def := testDef("tests-only", `x`)
	def.Filenames = []string{"*Test.cls", "TestUtils.cls"}
	rule, err := reg.Register(def)
	require.NoError(t, err)

	assert.True(t, rule.AppliesTo("src/classes/FooTest.cls"))
	assert.True(t, rule.AppliesTo("TestUtils.cls"))
	assert.False(t, rule.AppliesTo("src/classes/Foo.cls"))
	assert.True(t, rule.AppliesTo("<stdin>"))
}

func names(rs []*Rule) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name()
	}
	return out
}
