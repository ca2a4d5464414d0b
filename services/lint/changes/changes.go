// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package changes restricts findings to the lines a unified diff adds.
//
// It backs the --diff flag: lint the whole tree but only report what a
// change introduced, e.g. the output of "git diff -U0 main".
package changes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/AleutianAI/apexlint/services/lint/report"
)

// ErrInvalidDiff is returned when the input is not a unified diff.
var ErrInvalidDiff = errors.New("invalid diff")

const devNull = "/dev/null"

// Set holds the added lines of every file in a diff.
//
// Thread Safety: Read-only after construction; safe for concurrent use.
type Set struct {
	lines map[string]map[int]bool
}

// Parse reads a multi-file unified diff.
//
// Description:
//
//	Records the new-file line number of every "+" line. Deleted files
//	contribute nothing. Paths lose git's "a/" and "b/" prefixes and are
//	cleaned, so they compare equal to the paths the walker reports for
//	the same files.
//
// Inputs:
//
//	data - The diff text. Empty input yields an empty set.
//
// Outputs:
//
//	*Set - The added lines.
//	error - Wraps ErrInvalidDiff on malformed input.
func Parse(data []byte) (*Set, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDiff, err)
	}

	s := &Set{lines: make(map[string]map[int]bool)}
	for _, fd := range fileDiffs {
		if fd.NewName == devNull {
			continue
		}
		path := normalize(fd.NewName)
		for _, h := range fd.Hunks {
			s.addHunk(path, h)
		}
	}
	return s, nil
}

// Load parses the diff stored in path.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read diff %s: %w", path, err)
	}
	return Parse(data)
}

func (s *Set) addHunk(path string, h *diff.Hunk) {
	body := strings.TrimSuffix(string(h.Body), "\n")
	if body == "" {
		return
	}

	line := int(h.NewStartLine)
	for _, l := range strings.Split(body, "\n") {
		switch {
		case strings.HasPrefix(l, "+"):
			if s.lines[path] == nil {
				s.lines[path] = make(map[int]bool)
			}
			s.lines[path][line] = true
			line++
		case strings.HasPrefix(l, "-"), strings.HasPrefix(l, `\`):
			// Removed line or "\ No newline at end of file".
		default:
			line++
		}
	}
}

// Contains returns true if line (1-based) of path was added.
func (s *Set) Contains(path string, line int) bool {
	return s.lines[normalize(path)][line]
}

// Files returns the files with added lines, sorted.
func (s *Set) Files() []string {
	out := make([]string, 0, len(s.lines))
	for p := range s.lines {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Keep reports whether a finding starts on an added line. Use it with
// report.Report.Filter.
func (s *Set) Keep(f report.Finding) bool {
	return s.Contains(f.Path, f.Line)
}

func normalize(p string) string {
	p = strings.TrimPrefix(p, "a/")
	p = strings.TrimPrefix(p, "b/")
	return filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
}
