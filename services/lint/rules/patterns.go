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

// outsideString asserts that the current position is not inside a
// single-quoted string literal on the current line: everything from the
// line start is a run of complete '...' literals followed by unquoted text.
// Escaped quotes and backslashes inside literals are honoured.
const outsideString = `(?<=^(?:[^'\n]*'(?:\\\\|\\'|[^'\\\n])*')*[^'\n]*)`

// NotString wraps pattern so it only matches outside single-quoted string
// literals. The wrapped pattern must be compiled with Multiline so that ^
// anchors at each line start.
func NotString(pattern string) string {
	return outsideString + `(?:` + pattern + `)`
}

// NotStringMatcher is Single(NotString(pattern)) with Multiline added.
func NotStringMatcher(pattern string, flags ...Flag) Matcher {
	return Single(NotString(pattern), append(flags, Multiline)...)
}
