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
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/apexlint/pkg/ux"
)

// Verbosity levels for text output.
const (
	// VerbosityQuiet prints only the location line.
	VerbosityQuiet = -1
	// VerbosityNormal adds the source line and an arrow under the span.
	VerbosityNormal = 0
	// VerbosityVerbose adds the rule description.
	VerbosityVerbose = 1
)

// TextOptions configures WriteText.
type TextOptions struct {
	Verbosity int
	Styles    ux.Styles
}

// WriteText renders findings as
//
//	path:line:col: severity: message [rule]
//
// followed, depending on verbosity, by the indented description, the
// source line and a ^~~ arrow under the reported span.
func WriteText(w io.Writer, rep *Report, opts TextOptions) error {
	bw := bufio.NewWriter(w)
	s := opts.Styles
	for _, f := range rep.Findings {
		label := f.Severity.String()
		fmt.Fprintf(bw, "%s: %s: %s %s\n",
			s.Path.Render(fmt.Sprintf("%s:%d:%d", f.Path, f.Line, f.Column)),
			s.Severity(label).Render(label),
			f.Message,
			s.Rule.Render("["+f.Rule+"]"),
		)

		if opts.Verbosity >= VerbosityVerbose && f.Description != "" {
			for _, line := range strings.Split(f.Description, "\n") {
				fmt.Fprintf(bw, "  %s\n", s.Description.Render(line))
			}
		}
		if opts.Verbosity >= VerbosityNormal {
			fmt.Fprintf(bw, " %s\n", f.Source)
			fmt.Fprintf(bw, " %s\n", s.Arrow.Render(Arrow(f)))
		}
	}
	return bw.Flush()
}

// Arrow returns the marker line drawn under a finding's source line: the
// line's leading text blanked out (tabs kept so columns line up) followed
// by ^ and one ~ per further character of the span on that line.
func Arrow(f Finding) string {
	src := []rune(f.Source)
	col := min(f.Column-1, len(src))

	var b strings.Builder
	for _, r := range src[:col] {
		if r == '\t' {
			b.WriteRune('\t')
		} else {
			b.WriteRune(' ')
		}
	}

	width := f.Length
	if f.EndLine != f.Line {
		width = len(src) - col
	}
	b.WriteString("^")
	if width > 1 {
		b.WriteString(strings.Repeat("~", width-1))
	}
	return b.String()
}

// WriteProblems lists files that were not fully linted, one per line.
func WriteProblems(w io.Writer, rep *Report, s ux.Styles) error {
	bw := bufio.NewWriter(w)
	for _, p := range rep.Problems {
		fmt.Fprintf(bw, "%s: %s: %s: %s\n",
			s.Path.Render(p.Path), s.Warning.Render("warning"), p.Kind, p.Message)
	}
	return bw.Flush()
}

// WriteSummary writes a one-line count of findings and problems.
func WriteSummary(w io.Writer, rep *Report, s ux.Styles) error {
	icon := ux.IconSuccess
	switch rep.Status() {
	case StatusFindings:
		icon = ux.IconError
	case StatusProblems:
		icon = ux.IconWarning
	}
	_, err := fmt.Fprintf(w, "%s %s in %d files (%d suppressed, %d not linted)\n",
		icon.Render(s), plural(len(rep.Findings), "finding"), rep.FilesScanned, rep.Suppressed, len(rep.Problems))
	return err
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
