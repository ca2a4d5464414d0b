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
	"fmt"
	"strings"
)

// =============================================================================
// Severity
// =============================================================================

// Severity is the default severity of a rule's findings.
//
// The zero value means "unset"; Register promotes it to SeverityError.
type Severity int

const (
	// SeverityInfo is informational only.
	SeverityInfo Severity = iota + 1

	// SeverityWarning is a potential problem.
	SeverityWarning

	// SeverityError is a definite problem.
	SeverityError
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// AtLeast returns true if s is at least as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s >= min
}

// ParseSeverity converts a name to a Severity.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "info", "note":
		return SeverityInfo, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "error", "":
		return SeverityError, nil
	default:
		return 0, fmt.Errorf("%w: unknown severity %q", ErrInvalidRuleDefinition, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
