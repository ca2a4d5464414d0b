// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package source holds immutable source files and the offset/position
// mapping used by every later stage of the lint pipeline.
//
// All offsets are rune (character) offsets into the original text. Nothing
// in the pipeline rewrites file text, so an offset stays valid for the
// lifetime of the File that produced it.
package source

import "errors"

// Sentinel errors for source operations.
var (
	// ErrOutOfRange is returned when an offset or position lies outside
	// the file. Callers treat it as an internal invariant violation.
	ErrOutOfRange = errors.New("position out of range")

	// ErrInvalidEncoding is returned when file content is not valid UTF-8.
	ErrInvalidEncoding = errors.New("invalid UTF-8 content")
)
