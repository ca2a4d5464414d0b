// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package source

import (
	"fmt"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// StdinPath is the display path of content read from standard input.
const StdinPath = "<stdin>"

// File is one source file, immutable once created.
//
// Thread Safety: Safe for concurrent reads.
type File struct {
	path  string
	text  string
	runes []rune
	index *PositionIndex
	hash  uint64
}

// New creates a File from raw content.
//
// Description:
//
//	Validates that content is UTF-8, decodes it into characters and builds
//	the position index. The content slice is copied.
//
// Inputs:
//
//	path - Display path of the file.
//	content - Raw file bytes.
//
// Outputs:
//
//	*File - The indexed file.
//	error - Wraps ErrInvalidEncoding if content is not valid UTF-8.
func New(path string, content []byte) (*File, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEncoding, path)
	}
	text := string(content)
	runes := []rune(text)
	return &File{
		path:  path,
		text:  text,
		runes: runes,
		index: indexRunes(runes),
		hash:  xxhash.Sum64(content),
	}, nil
}

// FromString creates a File from text that is known to be valid UTF-8.
func FromString(path, text string) *File {
	f, err := New(path, []byte(text))
	if err != nil {
		panic(err)
	}
	return f
}

// Path returns the display path.
func (f *File) Path() string { return f.path }

// Text returns the full text.
func (f *File) Text() string { return f.text }

// Runes returns the decoded characters. Callers must not modify the slice.
func (f *File) Runes() []rune { return f.runes }

// Len returns the number of characters.
func (f *File) Len() int { return len(f.runes) }

// Index returns the position index.
func (f *File) Index() *PositionIndex { return f.index }

// Hash returns a content digest used for cache keys.
func (f *File) Hash() uint64 { return f.hash }

// IsStdin reports whether the file was read from standard input.
func (f *File) IsStdin() bool { return f.path == StdinPath }

// Slice returns the text between two offsets.
func (f *File) Slice(start, end int) (string, error) {
	if start < 0 || end < start || end > len(f.runes) {
		return "", fmt.Errorf("%w: span [%d,%d) of %d", ErrOutOfRange, start, end, len(f.runes))
	}
	return string(f.runes[start:end]), nil
}

// Line returns the text of a 1-based line without its newline.
func (f *File) Line(line int) (string, error) {
	start, end, err := f.index.LineBounds(line)
	if err != nil {
		return "", err
	}
	return string(f.runes[start:end]), nil
}
