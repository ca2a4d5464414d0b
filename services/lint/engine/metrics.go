// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/apexlint/services/lint/report"
)

// Package-level tracer and meter for lint runs.
var (
	tracer = otel.Tracer("apexlint.engine")
	meter  = otel.Meter("apexlint.engine")
)

// Metrics for lint runs.
var (
	runLatency     metric.Float64Histogram
	fileLatency    metric.Float64Histogram
	filesTotal     metric.Int64Counter
	findingsTotal  metric.Int64Counter
	suppressedSeen metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// Outcome labels for files_total.
const (
	outcomeScanned = "scanned"
	outcomeCached  = "cached"
	outcomeProblem = "problem"
)

var cacheHitAttr = attribute.Bool("lint.cache_hit", true)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"apexlint_run_duration_seconds",
			metric.WithDescription("Duration of lint runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fileLatency, err = meter.Float64Histogram(
			"apexlint_file_duration_seconds",
			metric.WithDescription("Time spent linting one file"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesTotal, err = meter.Int64Counter(
			"apexlint_files",
			metric.WithDescription("Files processed, by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		findingsTotal, err = meter.Int64Counter(
			"apexlint_findings",
			metric.WithDescription("Findings reported, by rule"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		suppressedSeen, err = meter.Int64Counter(
			"apexlint_suppressed",
			metric.WithDescription("Matches silenced by a suppression marker"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startRunSpan creates the span covering one run.
func startRunSpan(ctx context.Context, runID string, workers, rules int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.Run",
		trace.WithAttributes(
			attribute.String("lint.run_id", runID),
			attribute.Int("lint.workers", workers),
			attribute.Int("lint.rules", rules),
		),
	)
}

// startFileSpan creates a span for one file.
func startFileSpan(ctx context.Context, path string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.lintFile",
		trace.WithAttributes(attribute.String("lint.file_path", path)),
	)
}

// setRunSpanResult sets the result attributes on a run span.
func setRunSpanResult(span trace.Span, rep *report.Report) {
	span.SetAttributes(
		attribute.Int("lint.files_scanned", rep.FilesScanned),
		attribute.Int("lint.findings", len(rep.Findings)),
		attribute.Int("lint.suppressed", rep.Suppressed),
		attribute.Int("lint.problems", len(rep.Problems)),
		attribute.Bool("lint.passed", rep.Passed),
	)
}

// recordFileMetrics records metrics for one file.
func recordFileMetrics(ctx context.Context, outcome string, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	filesTotal.Add(ctx, 1, attrs)
	fileLatency.Record(ctx, duration.Seconds(), attrs)
}

// recordRunMetrics records metrics for a finished run.
func recordRunMetrics(ctx context.Context, rep *report.Report, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}

	runLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.Bool("passed", rep.Passed),
	))
	for rule, n := range rep.Counts {
		findingsTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("rule", rule)))
	}
	suppressedSeen.Add(ctx, int64(rep.Suppressed))
}
