// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/apexlint/services/lint/report"
)

// Exit codes.
const (
	ExitClean       = 0
	ExitFindings    = 1
	ExitProblems    = 2
	ExitConfigError = 3
	ExitInterrupted = 130
)

// ExitError carries a process exit code through cobra's error return.
//
// # Description
//
// A nil Err means the outcome was already reported (e.g. findings were
// printed) and only the code matters.
//
// # Example
//
//	return NewExitError(ExitConfigError, fmt.Errorf("load rules: %w", err))
//
//	var exitErr *ExitError
//	if errors.As(err, &exitErr) {
//	    os.Exit(exitErr.Code)
//	}
type ExitError struct {
	// Code is the process exit code.
	Code int

	// Err is the underlying error, if any.
	Err error
}

// Error returns a formatted error message.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit %d", e.Code)
}

// Unwrap returns the underlying error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// Silent returns true if there is nothing to print.
func (e *ExitError) Silent() bool {
	return e.Err == nil
}

// NewExitError creates an ExitError.
func NewExitError(code int, err error) *ExitError {
	return &ExitError{Code: code, Err: err}
}

// statusError converts a report status into an exit error, or nil when
// the run was clean.
func statusError(rep *report.Report) error {
	switch rep.Status() {
	case report.StatusFindings:
		return NewExitError(ExitFindings, nil)
	case report.StatusProblems:
		return NewExitError(ExitProblems, nil)
	default:
		return nil
	}
}

// exitCode maps an error returned by a command to a process exit code.
// Errors that are not ExitErrors are configuration or internal failures.
func exitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitClean
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitConfigError
	}
}
