// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package walk discovers the files to lint and reads their content.
//
// A Source yields paths and then reads each one on demand, so the engine
// can read files inside its workers. Paths that cannot be read are still
// yielded; Read then fails with ErrUnreadableFile and the file is reported
// as a problem instead of silently disappearing from the run.
package walk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/AleutianAI/apexlint/services/lint/glob"
	"github.com/AleutianAI/apexlint/services/lint/source"
)

// ErrUnreadableFile is returned by Read when a file cannot be linted:
// missing, unreadable, too large, binary or not UTF-8.
var ErrUnreadableFile = errors.New("unreadable file")

// StdinArg is the path argument that selects standard input.
const StdinArg = "-"

// DefaultMaxFileSize is the largest file read by default.
const DefaultMaxFileSize int64 = 4 << 20

// Source yields files to lint.
type Source interface {
	// Paths returns the de-duplicated paths to lint in a stable order.
	Paths(ctx context.Context) ([]string, error)

	// Read loads one path returned by Paths.
	Read(path string) (*source.File, error)
}

// Option configures an FS source.
type Option func(*FS)

// WithPatterns sets the include and exclude patterns applied while
// walking directories. Files named explicitly are always linted unless
// excluded.
func WithPatterns(m *glob.Matcher) Option {
	return func(s *FS) {
		s.patterns = m
	}
}

// WithMaxFileSize sets the size limit. Zero or negative disables it.
func WithMaxFileSize(n int64) Option {
	return func(s *FS) {
		s.maxSize = n
	}
}

// WithStdin sets the reader used for StdinArg.
func WithStdin(r io.Reader) Option {
	return func(s *FS) {
		s.stdin = r
	}
}

// FS walks files and directories on the local file system.
//
// Thread Safety: Read is safe for concurrent use.
type FS struct {
	roots    []string
	patterns *glob.Matcher
	maxSize  int64
	stdin    io.Reader

	stdinOnce sync.Once
	stdinData []byte
	stdinErr  error
}

// NewFS creates a source over roots. An empty roots list reads standard
// input.
func NewFS(roots []string, opts ...Option) *FS {
	if len(roots) == 0 {
		roots = []string{StdinArg}
	}
	s := &FS{
		roots:    append([]string(nil), roots...),
		patterns: glob.MustNew(glob.DefaultIncludes, glob.DefaultExcludes),
		maxSize:  DefaultMaxFileSize,
		stdin:    os.Stdin,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Paths expands the roots.
//
// Description:
//
//	Directories are walked recursively in lexical order; files inside
//	them are kept when they match the include patterns and are not
//	excluded. Excluded directories are not descended. Roots that cannot
//	be stat'ed and directory entries that cannot be listed are kept so
//	Read reports them. A path reached twice (directly, through a parent
//	directory or through a symlink) is yielded once.
//
// Outputs:
//
//	[]string - Paths in root order. "-" becomes source.StdinPath.
//	error - The context error if ctx is cancelled.
func (s *FS) Paths(ctx context.Context) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		key := identity(p)
		if !seen[key] {
			seen[key] = true
			out = append(out, p)
		}
	}

	for _, root := range s.roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if root == StdinArg {
			add(source.StdinPath)
			continue
		}

		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			if !s.patterns.Excluded(root) {
				add(root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				add(p)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}

			rel, relErr := filepath.Rel(root, p)
			if relErr != nil || rel == "." {
				return nil
			}
			if d.IsDir() {
				if s.patterns.Excluded(rel) {
					return fs.SkipDir
				}
				return nil
			}
			if s.patterns.Match(rel) {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Read loads and decodes one file.
func (s *FS) Read(path string) (*source.File, error) {
	if path == source.StdinPath {
		s.stdinOnce.Do(func() {
			s.stdinData, s.stdinErr = io.ReadAll(s.stdin)
		})
		if s.stdinErr != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnreadableFile, path, s.stdinErr)
		}
		return decode(path, s.stdinData)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableFile, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s: is a directory", ErrUnreadableFile, path)
	}
	if s.maxSize > 0 && info.Size() > s.maxSize {
		return nil, fmt.Errorf("%w: %s: %d bytes exceeds limit of %d", ErrUnreadableFile, path, info.Size(), s.maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableFile, err)
	}
	return decode(path, data)
}

func decode(path string, data []byte) (*source.File, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, fmt.Errorf("%w: %s: binary content", ErrUnreadableFile, path)
	}
	f, err := source.New(path, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableFile, err)
	}
	return f, nil
}

// identity returns the key used to de-duplicate a path.
func identity(p string) string {
	if p == source.StdinPath {
		return p
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Memory is an in-memory Source, mainly for tests and editor integrations.
type Memory struct {
	files map[string]string
}

// NewMemory creates a source over path to content.
func NewMemory(files map[string]string) *Memory {
	m := &Memory{files: make(map[string]string, len(files))}
	for p, c := range files {
		m.files[p] = c
	}
	return m
}

// Paths returns the paths in lexical order.
func (m *Memory) Paths(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// Read returns the file for path.
func (m *Memory) Read(path string) (*source.File, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s: no such file", ErrUnreadableFile, path)
	}
	return decode(path, []byte(content))
}
