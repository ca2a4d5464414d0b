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
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/apexlint/services/lint/engine"
	"github.com/AleutianAI/apexlint/services/lint/rules"
	"github.com/AleutianAI/apexlint/services/lint/walk"
)

// RequestIDHeader carries the request ID in and out.
const RequestIDHeader = "X-Request-ID"

// Default limits.
const (
	DefaultMaxFiles     = 1000
	DefaultMaxBodyBytes = 16 << 20
)

// RegistryFactory builds a fresh registry with the server's configured
// rules. It is called when a request overrides the rule selection.
type RegistryFactory func() (*rules.Registry, error)

// Config configures the handlers.
type Config struct {
	// Version is reported by the health endpoint.
	Version string

	// MaxFiles caps the files in one request. Default: DefaultMaxFiles.
	MaxFiles int

	// MaxBodyBytes caps the request body. Default: DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Logger receives request logs. Default: slog.Default().
	Logger *slog.Logger
}

// Handlers serves the lint API.
//
// # Thread Safety
//
// Safe for concurrent use. Requests without a rule selection share one
// engine; the others get their own registry and engine.
type Handlers struct {
	cfg        Config
	newReg     RegistryFactory
	engineOpts []engine.Option
	registry   *rules.Registry
	engine     *engine.Engine
}

// NewHandlers builds the handlers. The factory is called once for the
// shared engine; opts are applied to every engine.
func NewHandlers(newReg RegistryFactory, cfg Config, opts ...engine.Option) (*Handlers, error) {
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = DefaultMaxFiles
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	reg, err := newReg()
	if err != nil {
		return nil, err
	}
	return &Handlers{
		cfg:        cfg,
		newReg:     newReg,
		engineOpts: opts,
		registry:   reg,
		engine:     engine.New(reg, opts...),
	}, nil
}

// HandleLint handles POST /v1/lint.
//
// Response:
//
//	200 OK: LintResponse, whether or not there are findings
//	400 Bad Request: INVALID_REQUEST, DUPLICATE_PATH, UNKNOWN_RULE
//	413 Request Entity Too Large: REQUEST_TOO_LARGE, TOO_MANY_FILES
//	500 Internal Server Error: LINT_FAILED
func (h *Handlers) HandleLint(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.cfg.Logger.With("request_id", requestID, "handler", "HandleLint")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxBodyBytes)

	var req LintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error(), Code: "REQUEST_TOO_LARGE"})
			return
		}
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	if len(req.Files) > h.cfg.MaxFiles {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "too many files", Code: "TOO_MANY_FILES"})
		return
	}

	files := make(map[string]string, len(req.Files))
	for _, f := range req.Files {
		if _, dup := files[f.Path]; dup {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "duplicate path " + f.Path, Code: "DUPLICATE_PATH"})
			return
		}
		files[f.Path] = f.Content
	}

	eng := h.engine
	if len(req.Select) > 0 || len(req.Ignore) > 0 {
		reg, err := h.newReg()
		if err != nil {
			logger.Error("Build registry failed", "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "LINT_FAILED"})
			return
		}
		if err := reg.Select(req.Select, req.Ignore); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "UNKNOWN_RULE"})
			return
		}
		eng = engine.New(reg, append(slices.Clip(h.engineOpts), engine.WithRunID(requestID))...)
	}

	rep, err := eng.Run(c.Request.Context(), walk.NewMemory(files))
	if err != nil {
		logger.Error("Lint failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "LINT_FAILED"})
		return
	}

	logger.Info("Lint complete", "files", len(files), "findings", len(rep.Findings))
	c.JSON(http.StatusOK, LintResponse{RequestID: requestID, Report: rep})
}

// HandleRules handles GET /v1/rules.
func (h *Handlers) HandleRules(c *gin.Context) {
	c.JSON(http.StatusOK, RulesResponse{Rules: h.registry.Describe()})
}

// HandleHealth handles GET /v1/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: h.cfg.Version,
		Rules:   len(h.registry.Enabled()),
	})
}

// getOrCreateRequestID returns the caller's request ID or a new one, and
// echoes it in the response.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(RequestIDHeader, id)
	return id
}
