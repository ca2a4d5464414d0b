// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine runs the lint pipeline over a set of files.
//
// Each file goes through read, scan, suppression and (optionally) the
// result cache on a bounded pool of workers. Per-file failures become
// report problems; only internal errors abort a run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/apexlint/services/lint/cache"
	"github.com/AleutianAI/apexlint/services/lint/report"
	"github.com/AleutianAI/apexlint/services/lint/rules"
	"github.com/AleutianAI/apexlint/services/lint/scanner"
	"github.com/AleutianAI/apexlint/services/lint/suppress"
	"github.com/AleutianAI/apexlint/services/lint/walk"
)

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the number of files linted concurrently.
// Values below 1 mean runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithCache enables the result cache. The engine does not close it.
func WithCache(c *cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithSuppression sets the suppression options.
func WithSuppression(opts suppress.Options) Option {
	return func(e *Engine) { e.suppress = opts }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRunID fixes the run identifier. By default each run gets a new UUID.
func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}

// Engine lints files against a rule registry.
//
// Thread Safety: Run may be called concurrently. The registry must not be
// modified while a run is in progress.
type Engine struct {
	registry *rules.Registry
	resolver *suppress.Resolver
	suppress suppress.Options
	cache    *cache.Cache
	workers  int
	logger   *slog.Logger
	runID    string
}

// New creates an engine for reg.
func New(reg *rules.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		workers:  runtime.NumCPU(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.resolver = suppress.NewResolver(reg, e.suppress)
	return e
}

// Workers returns the worker count.
func (e *Engine) Workers() int {
	return e.workers
}

// Settings describes the options that change lint output for a given
// rule set. It is part of every cache key.
func (e *Engine) Settings() string {
	o := e.resolver.Options()
	return fmt.Sprintf("window=%d;noqa=%t;disabled=%t;marker=%s", o.Window, o.NoQA, o.Disabled, o.DefaultMarker)
}

// run holds the state of one Run call.
type run struct {
	*Engine
	scanner     *scanner.Scanner
	fingerprint string
	settings    string
	cached      atomic.Int64
}

// Run lints every file src yields.
//
// Description:
//
//	Takes a snapshot of the enabled rules, then lints files on at most
//	Workers goroutines. Each file gets its own result slot, so the report
//	does not depend on scheduling. If ctx is cancelled, files not yet
//	linted are reported as cancelled problems.
//
// Inputs:
//
//	ctx - Cancels the run.
//	src - The files to lint.
//
// Outputs:
//
//	*report.Report - The aggregated report.
//	error - Non-nil if the file list cannot be built or on an internal
//	        error (wraps report.ErrInternal).
func (e *Engine) Run(ctx context.Context, src walk.Source) (*report.Report, error) {
	runID := e.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	enabled := e.registry.Enabled()
	start := time.Now()

	ctx, span := startRunSpan(ctx, runID, e.workers, len(enabled))
	defer span.End()

	logger := e.logger.With("run_id", runID)

	paths, err := src.Paths(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list files")
		return nil, fmt.Errorf("list files: %w", err)
	}
	logger.Debug("lint run started", "files", len(paths), "rules", len(enabled), "workers", e.workers)

	r := &run{
		Engine:      e,
		scanner:     scanner.New(enabled),
		fingerprint: e.registry.Fingerprint(),
		settings:    e.Settings(),
	}

	results := make([]report.FileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, p := range paths {
		if err := gctx.Err(); err != nil {
			results[i] = report.FileResult{Path: p, Err: err}
			continue
		}
		g.Go(func() error {
			res, err := r.lintFile(gctx, src, p)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "internal error")
		return nil, err
	}

	rep, err := report.NewAggregator(e.registry).Aggregate(results)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate")
		return nil, err
	}

	duration := time.Since(start)
	setRunSpanResult(span, rep)
	recordRunMetrics(ctx, rep, duration)
	logger.Info("lint run complete",
		"files", rep.FilesScanned,
		"cached", r.cached.Load(),
		"findings", len(rep.Findings),
		"suppressed", rep.Suppressed,
		"problems", len(rep.Problems),
		"duration", duration,
	)
	return rep, nil
}

// lintFile produces the result slot for one path. The error is non-nil
// only for internal failures; file-level failures go into the result.
func (r *run) lintFile(ctx context.Context, src walk.Source, path string) (report.FileResult, error) {
	start := time.Now()
	ctx, span := startFileSpan(ctx, path)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return report.FileResult{Path: path, Err: err}, nil
	}

	f, err := src.Read(path)
	if err != nil {
		span.RecordError(err)
		recordFileMetrics(ctx, outcomeProblem, time.Since(start))
		return report.FileResult{Path: path, Err: err}, nil
	}

	var key cache.Key
	if r.cache != nil {
		key = cache.NewKey(r.fingerprint, r.settings, f)
		entry, ok, err := r.cache.Get(ctx, key)
		switch {
		case err != nil:
			r.logger.Warn("cache read failed", "path", f.Path(), "error", err)
		case ok:
			r.cached.Add(1)
			span.SetAttributes(cacheHitAttr)
			recordFileMetrics(ctx, outcomeCached, time.Since(start))
			return report.FileResult{
				Path:       f.Path(),
				File:       f,
				Matches:    entry.Matches,
				Suppressed: entry.Suppressed,
			}, nil
		}
	}

	matches, err := r.scanner.Scan(ctx, f)
	if err != nil {
		span.RecordError(err)
		recordFileMetrics(ctx, outcomeProblem, time.Since(start))
		return report.FileResult{Path: f.Path(), Err: err}, nil
	}

	res, err := r.resolver.Resolve(matches, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve")
		return report.FileResult{}, fmt.Errorf("%w: %s: %w", report.ErrInternal, f.Path(), err)
	}

	if r.cache != nil {
		err := r.cache.Put(ctx, key, cache.Entry{Matches: res.Kept, Suppressed: res.Suppressed})
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Warn("cache write failed", "path", f.Path(), "error", err)
		}
	}

	recordFileMetrics(ctx, outcomeScanned, time.Since(start))
	return report.FileResult{
		Path:       f.Path(),
		File:       f,
		Matches:    res.Kept,
		Suppressed: res.Suppressed,
	}, nil
}
