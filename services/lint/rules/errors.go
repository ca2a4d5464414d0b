// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules defines lint rules, their matchers and the ordered registry
// that the scanner, suppression resolver and reporter share.
//
// # Extension
//
// Adding a check means registering a Definition, either from Go code or
// from a YAML rule file. Nothing downstream of the registry changes.
//
// # Thread Safety
//
// Rules are immutable once registered. The Registry is safe for concurrent
// use; lint runs take a snapshot of the enabled rules.
package rules

import "errors"

// Sentinel errors for rule registration. All of them are fatal at
// startup: a broken rule set cannot produce a trustworthy report.
var (
	// ErrInvalidRulePattern is returned when a pattern fails to compile.
	ErrInvalidRulePattern = errors.New("invalid rule pattern")

	// ErrInvalidRuleDefinition is returned when a definition is malformed
	// (bad name, missing message, bad filename glob, empty composition).
	ErrInvalidRuleDefinition = errors.New("invalid rule definition")

	// ErrDuplicateRuleName is returned when a name or alias collides with
	// an already registered rule.
	ErrDuplicateRuleName = errors.New("duplicate rule name")

	// ErrUnknownRule is returned when a rule name is not registered.
	ErrUnknownRule = errors.New("unknown rule")
)
