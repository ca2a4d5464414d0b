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
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/apexlint/services/lint/report"
	"github.com/AleutianAI/apexlint/services/lint/walk"
	"github.com/AleutianAI/apexlint/services/lint/watch"
)

// errWatchStdin is returned when watch is asked to read standard input.
var errWatchStdin = errors.New("watch cannot read standard input")

type watchOptions struct {
	lintOptions
	debounce    time.Duration
	minInterval time.Duration
}

func newWatchCmd(s streams, g *globalOptions) *cobra.Command {
	o := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch [flags] [PATH...]",
		Short: "Lint, then re-lint whenever a watched file changes",
		Long: `Lint PATH (default: the working directory) once, then watch it and
lint again after every burst of changes to matching files. Stop with
Ctrl-C.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, s, g, o, args)
		},
	}
	addLintFlags(cmd, &o.lintOptions)
	defaults := watch.DefaultOptions()
	cmd.Flags().DurationVar(&o.debounce, "debounce", defaults.Debounce, "quiet period before re-linting")
	cmd.Flags().DurationVar(&o.minInterval, "min-interval", defaults.MinInterval, "minimum time between two runs")
	return cmd
}

func runWatch(cmd *cobra.Command, s streams, g *globalOptions, o *watchOptions, args []string) error {
	if len(args) == 0 {
		args = []string{"."}
	}
	if slices.Contains(args, walk.StdinArg) {
		return errWatchStdin
	}

	ctx := cmd.Context()
	ss, err := newSession(cmd, s, g, &o.lintOptions)
	if err != nil {
		return err
	}
	defer ss.close(ctx)

	lintOnce := func(ctx context.Context) error {
		rep, err := ss.lint(ctx, nil, args)
		if err != nil {
			return err
		}
		if err := ss.render(s, rep); err != nil {
			return err
		}
		if ss.format == report.FormatText && rep.Passed && len(rep.Problems) == 0 && ss.verbosity >= 0 {
			fmt.Fprintln(s.err, "no findings")
		}
		return nil
	}

	if err := lintOnce(ctx); err != nil {
		return err
	}

	w, err := watch.New(args, func(ctx context.Context, changes []watch.Change) {
		ss.logger.Info("files changed", "count", len(changes))
		if err := lintOnce(ctx); err != nil && ctx.Err() == nil {
			ss.logger.Error("lint failed", "error", err)
		}
	}, watch.Options{
		Debounce:    o.debounce,
		MinInterval: o.minInterval,
		Patterns:    ss.patterns,
		Logger:      ss.logger.Slog(),
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	ss.logger.Info("watching", "paths", args)

	<-ctx.Done()
	w.Stop()
	return nil
}
