// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"github.com/AleutianAI/apexlint/services/lint/report"
	"github.com/AleutianAI/apexlint/services/lint/rules"
)

// FileInput is one file submitted for linting.
type FileInput struct {
	// Path is the display path. It selects which rules apply, so it should
	// keep the .cls or .trigger extension.
	Path string `json:"path" binding:"required"`

	// Content is the file's text.
	Content string `json:"content"`
}

// LintRequest is the body of POST /v1/lint.
type LintRequest struct {
	Files []FileInput `json:"files" binding:"required,min=1,dive"`

	// Select and Ignore replace the server's rule selection for this
	// request when either is set.
	Select []string `json:"select,omitempty"`
	Ignore []string `json:"ignore,omitempty"`
}

// LintResponse is the body of a successful POST /v1/lint.
type LintResponse struct {
	RequestID string         `json:"request_id"`
	Report    *report.Report `json:"report"`
}

// RulesResponse is the body of GET /v1/rules.
type RulesResponse struct {
	Rules []rules.Info `json:"rules"`
}

// HealthResponse is the body of GET /v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Rules   int    `json:"rules"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
