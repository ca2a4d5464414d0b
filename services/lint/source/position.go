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
	"sort"
)

// Position is a 1-based line and column. Column counts characters since
// the preceding newline.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// String returns "line:column".
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// PositionIndex converts rune offsets to positions and back.
//
// Description:
//
//	Built once per file in O(n) by recording the offset of every newline.
//	Locate runs in O(log n) by binary search over those offsets. A newline
//	belongs to the line it terminates.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type PositionIndex struct {
	newlines []int
	length   int
}

// NewPositionIndex indexes text.
func NewPositionIndex(text string) *PositionIndex {
	return indexRunes([]rune(text))
}

func indexRunes(runes []rune) *PositionIndex {
	idx := &PositionIndex{length: len(runes)}
	for i, r := range runes {
		if r == '\n' {
			idx.newlines = append(idx.newlines, i)
		}
	}
	return idx
}

// Len returns the number of characters in the indexed text.
func (x *PositionIndex) Len() int {
	return x.length
}

// LineCount returns the number of lines. Text ending in a newline has an
// empty final line; empty text has none.
func (x *PositionIndex) LineCount() int {
	if x.length == 0 {
		return 0
	}
	return len(x.newlines) + 1
}

// Locate maps an offset to its position.
//
// Description:
//
//	Valid offsets are 0 through Len() inclusive, so the end of a span can
//	be located as well as its start. Every offset into empty text is out
//	of range.
//
// Inputs:
//
//	offset - Rune offset into the text.
//
// Outputs:
//
//	Position - 1-based line and column.
//	error - Wraps ErrOutOfRange if offset lies outside the text.
func (x *PositionIndex) Locate(offset int) (Position, error) {
	if x.length == 0 || offset < 0 || offset > x.length {
		return Position{}, fmt.Errorf("%w: offset %d, length %d", ErrOutOfRange, offset, x.length)
	}

	// Number of newlines strictly before offset; a newline at offset
	// terminates the current line and is not counted.
	line := sort.SearchInts(x.newlines, offset)
	return Position{Line: line + 1, Column: offset - x.lineStart(line+1) + 1}, nil
}

// Offset maps a position back to its offset. It is the inverse of Locate.
func (x *PositionIndex) Offset(p Position) (int, error) {
	start, end, err := x.LineBounds(p.Line)
	if err != nil {
		return 0, err
	}
	// The terminating newline (or end of text) is addressable.
	if p.Column < 1 || start+p.Column-1 > end {
		return 0, fmt.Errorf("%w: column %d on line %d", ErrOutOfRange, p.Column, p.Line)
	}
	return start + p.Column - 1, nil
}

// LineBounds returns the offsets of the first character of line and of
// its terminating newline (or the end of text for the last line).
func (x *PositionIndex) LineBounds(line int) (start, end int, err error) {
	if line < 1 || line > x.LineCount() {
		return 0, 0, fmt.Errorf("%w: line %d of %d", ErrOutOfRange, line, x.LineCount())
	}
	start = x.lineStart(line)
	if line <= len(x.newlines) {
		return start, x.newlines[line-1], nil
	}
	return start, x.length, nil
}

func (x *PositionIndex) lineStart(line int) int {
	if line <= 1 {
		return 0
	}
	return x.newlines[line-2] + 1
}
