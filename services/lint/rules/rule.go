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
	"bytes"
	"strings"
	"text/template"

	"github.com/AleutianAI/apexlint/services/lint/glob"
	"github.com/AleutianAI/apexlint/services/lint/source"
)

// DefaultFilenames are the files a rule applies to when its Definition
// names none.
var DefaultFilenames = []string{"*.cls", "*.trigger"}

// Definition is the externally supplied description of a rule.
//
// Summary is a text/template rendered with MessageData; Description is
// shown verbatim in verbose output.
type Definition struct {
	// Name is the unique kebab-case identifier, e.g. "object-as-map-key".
	Name string `validate:"required,rulename"`

	// Aliases are alternative names accepted by Lookup, Enable and Disable.
	Aliases []string `validate:"dive,required"`

	// Summary is the one-line message template.
	Summary string `validate:"required"`

	// Description is the longer explanation.
	Description string

	// Severity defaults to SeverityError.
	Severity Severity `validate:"gte=0,lte=3"`

	// Suppressible allows a marker on the matched line to silence a
	// finding. Mandatory checks leave it false.
	Suppressible bool

	// Marker overrides the resolver's default suppression marker.
	Marker string

	// Filenames are globs selecting the files the rule applies to.
	// Default: DefaultFilenames.
	Filenames []string `validate:"dive,required"`

	// Matcher is what the rule looks for.
	Matcher Matcher `validate:"-"`
}

// MessageData is the data available to a Summary template.
type MessageData struct {
	Rule   string
	Path   string
	Text   string
	Line   int
	Column int
}

// Rule is a registered, immutable rule.
//
// Thread Safety: Safe for concurrent use.
type Rule struct {
	def     Definition
	index   int
	message *template.Template
}

// Name returns the unique rule name.
func (r *Rule) Name() string { return r.def.Name }

// Aliases returns the alternative names.
func (r *Rule) Aliases() []string { return append([]string(nil), r.def.Aliases...) }

// Index returns the registration index; lower indexes sort first when
// findings share a position.
func (r *Rule) Index() int { return r.index }

// Severity returns the default severity.
func (r *Rule) Severity() Severity { return r.def.Severity }

// Suppressible reports whether a marker may silence this rule.
func (r *Rule) Suppressible() bool { return r.def.Suppressible }

// Marker returns the rule's own suppression marker, or "" to use the
// resolver default.
func (r *Rule) Marker() string { return r.def.Marker }

// Summary returns the unrendered message template.
func (r *Rule) Summary() string { return r.def.Summary }

// Description returns the long explanation.
func (r *Rule) Description() string { return r.def.Description }

// Filenames returns the filename globs.
func (r *Rule) Filenames() []string { return append([]string(nil), r.def.Filenames...) }

// Matcher returns the compiled matcher.
func (r *Rule) Matcher() *Matcher { return &r.def.Matcher }

// AppliesTo reports whether the rule runs on path. Standard input is
// linted by every rule.
func (r *Rule) AppliesTo(path string) bool {
	if path == source.StdinPath {
		return true
	}
	return glob.MatchAny(r.def.Filenames, path)
}

// Message renders the summary template. A template that fails at render
// time falls back to the raw summary.
func (r *Rule) Message(data MessageData) string {
	data.Rule = r.def.Name
	var buf bytes.Buffer
	if err := r.message.Execute(&buf, data); err != nil {
		return r.def.Summary
	}
	return strings.TrimSpace(buf.String())
}
