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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate(t *testing.T) {
	idx := NewPositionIndex("ab\ncd\n\nef")

	tests := []struct {
		name   string
		offset int
		want   Position
	}{
		{"start of file", 0, Position{1, 1}},
		{"middle of first line", 1, Position{1, 2}},
		{"newline belongs to the line it ends", 2, Position{1, 3}},
		{"start of second line", 3, Position{2, 1}},
		{"second newline", 5, Position{2, 3}},
		{"empty line", 6, Position{3, 1}},
		{"last line without trailing newline", 7, Position{4, 1}},
		{"last character", 8, Position{4, 2}},
		{"end of text", 9, Position{4, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := idx.Locate(tt.offset)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocate_OutOfRange(t *testing.T) {
	idx := NewPositionIndex("abc")
	for _, off := range []int{-1, 4, 100} {
		_, err := idx.Locate(off)
		assert.ErrorIs(t, err, ErrOutOfRange, "offset %d", off)
	}
}

func TestLocate_EmptyText(t *testing.T) {
	idx := NewPositionIndex("")
	assert.Equal(t, 0, idx.LineCount())
	for _, off := range []int{0, 1} {
		_, err := idx.Locate(off)
		assert.ErrorIs(t, err, ErrOutOfRange)
	}
}

func TestLocate_CountsCharactersNotBytes(t *testing.T) {
	idx := NewPositionIndex("é€x\nü")

	pos, err := idx.Locate(2)
	require.NoError(t, err)
	assert.Equal(t, Position{1, 3}, pos)

	pos, err = idx.Locate(4)
	require.NoError(t, err)
	assert.Equal(t, Position{2, 1}, pos)
}

func TestOffset_RoundTrip(t *testing.T) {
	texts := []string{
		"a",
		"line one\nline two\n",
		"\n\n\n",
		"x = 'é';\r\ny = 1;",
	}
	for _, text := range texts {
		idx := NewPositionIndex(text)
		for off := 0; off <= idx.Len(); off++ {
			pos, err := idx.Locate(off)
			require.NoError(t, err)

			back, err := idx.Offset(pos)
			require.NoError(t, err)
			assert.Equal(t, off, back, "text %q offset %d", text, off)

			again, err := idx.Locate(back)
			require.NoError(t, err)
			assert.Equal(t, pos, again)
		}
	}
}

func TestOffset_Invalid(t *testing.T) {
	idx := NewPositionIndex("ab\ncd")

	tests := []Position{
		{0, 1},
		{3, 1},
		{1, 0},
		{1, 4},
		{2, 4},
	}
	for _, p := range tests {
		_, err := idx.Offset(p)
		assert.ErrorIs(t, err, ErrOutOfRange, "position %v", p)
	}
}

func TestLineBounds(t *testing.T) {
	idx := NewPositionIndex("ab\n\ncde")
	assert.Equal(t, 3, idx.LineCount())

	start, end, err := idx.LineBounds(1)
	require.NoError(t, err)
	assert.Equal(t, [2]int{0, 2}, [2]int{start, end})

	start, end, err = idx.LineBounds(2)
	require.NoError(t, err)
	assert.Equal(t, [2]int{3, 3}, [2]int{start, end})

	start, end, err = idx.LineBounds(3)
	require.NoError(t, err)
	assert.Equal(t, [2]int{4, 7}, [2]int{start, end})

	_, _, err = idx.LineBounds(4)
	assert.ErrorIs(t, err, ErrOutOfRange)
}
