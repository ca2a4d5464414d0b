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
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/apexlint/cmd/apexlint/config"
	"github.com/AleutianAI/apexlint/pkg/logging"
	"github.com/AleutianAI/apexlint/pkg/ux"
	"github.com/AleutianAI/apexlint/services/lint/cache"
	"github.com/AleutianAI/apexlint/services/lint/changes"
	"github.com/AleutianAI/apexlint/services/lint/engine"
	"github.com/AleutianAI/apexlint/services/lint/glob"
	"github.com/AleutianAI/apexlint/services/lint/report"
	"github.com/AleutianAI/apexlint/services/lint/rules"
	"github.com/AleutianAI/apexlint/services/lint/suppress"
	"github.com/AleutianAI/apexlint/services/lint/telemetry"
	"github.com/AleutianAI/apexlint/services/lint/validators"
	"github.com/AleutianAI/apexlint/services/lint/walk"
)

const informationURI = "https://github.com/AleutianAI/apexlint"

// session holds everything one lint or watch invocation needs.
type session struct {
	cfg       config.ApexlintConfig
	logger    *logging.Logger
	runID     string
	registry  *rules.Registry
	patterns  *glob.Matcher
	engine    *engine.Engine
	engOpts   []engine.Option
	cache     *cache.Cache
	telemetry *telemetry.Telemetry
	diff      *changes.Set

	format    report.Format
	color     ux.ColorMode
	verbosity int
	count     bool
	output    string
	textfile  string
}

// loadConfig reads --config, or discovers .apexlint.yaml from the
// working directory upward.
func loadConfig(g *globalOptions) (config.ApexlintConfig, error) {
	if g.configPath != "" {
		return config.Load(g.configPath)
	}
	return config.Discover(".")
}

// applyLintFlags overrides config values with the flags that were set.
func applyLintFlags(cfg *config.ApexlintConfig, o *lintOptions, changed func(string) bool) error {
	if changed("select") {
		cfg.Select = o.selectRules
	}
	if changed("ignore") {
		cfg.Ignore = o.ignoreRules
	}
	if changed("include") {
		cfg.Include = o.include
	}
	if changed("exclude") {
		cfg.Exclude = o.exclude
	}
	if changed("jobs") {
		cfg.Jobs = o.jobs
	}
	if changed("max-file-size") {
		cfg.MaxFileSize = o.maxFileSize
	}
	if changed("match-timeout") {
		cfg.MatchTimeout = o.matchTimeout
	}
	if changed("suppress-window") {
		cfg.Suppress.Window = o.window
	}
	if o.noSuppress {
		disabled := false
		cfg.Suppress.Enabled = &disabled
	}
	if changed("noqa") {
		noqa := o.noqa
		cfg.Suppress.NoQA = &noqa
	}
	if changed("format") {
		cfg.Format = o.format
	}
	if changed("color") {
		cfg.Color = o.color
	}
	if changed("cache") {
		cfg.Cache.Enabled = o.cache
	}
	if o.noCache {
		cfg.Cache.Enabled = false
	}
	if changed("cache-dir") {
		cfg.Cache.Dir = o.cacheDir
	}
	if changed("traces") {
		cfg.Telemetry.Traces = o.traces
	}
	if changed("metrics") {
		cfg.Telemetry.Metrics = o.metrics
	}
	if changed("metrics-textfile") {
		cfg.Telemetry.PrometheusTextfile = o.metricsTextfile
	}
	return cfg.Validate()
}

// buildRegistry returns the built-in rules plus the rules of every rule
// file, with the selection applied.
func buildRegistry(cfg config.ApexlintConfig, extraRuleFiles []string) (*rules.Registry, error) {
	var opts []rules.RegistryOption
	if cfg.MatchTimeout > 0 {
		opts = append(opts, rules.WithMatchTimeout(cfg.MatchTimeout))
	}
	reg := validators.Default(opts...)

	files := make([]string, 0, len(cfg.RuleFiles)+len(extraRuleFiles))
	for _, f := range cfg.RuleFiles {
		files = append(files, cfg.ResolvePath(f))
	}
	files = append(files, extraRuleFiles...)

	for _, f := range files {
		defs, err := rules.LoadRuleFile(f)
		if err != nil {
			return nil, err
		}
		if err := reg.RegisterAll(defs); err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
	}

	if err := reg.Select(cfg.Select, cfg.Ignore); err != nil {
		return nil, err
	}
	return reg, nil
}

func newLogger(g *globalOptions, cfg config.ApexlintConfig, w io.Writer) (*logging.Logger, error) {
	name := cfg.LogLevel
	if g.logLevel != "" {
		name = g.logLevel
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:   level,
		JSON:    g.logJSON,
		LogDir:  g.logDir,
		Service: "apexlint",
		Output:  w,
	}), nil
}

func newTelemetry(ctx context.Context, cfg config.ApexlintConfig, w io.Writer) (*telemetry.Telemetry, error) {
	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	tcfg.Output = w
	if cfg.Telemetry.Traces != "" {
		tcfg.TraceExporter = cfg.Telemetry.Traces
	}
	if cfg.Telemetry.Metrics != "" {
		tcfg.MetricExporter = cfg.Telemetry.Metrics
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		tcfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	if cfg.Telemetry.PrometheusTextfile != "" {
		tcfg.MetricExporter = telemetry.ExporterPrometheus
	}
	return telemetry.Init(ctx, tcfg)
}

func openCache(cfg config.ApexlintConfig, o *lintOptions, logger *logging.Logger) (*cache.Cache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	dir := cfg.Cache.Dir
	if dir == "" {
		d, err := cache.DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	} else {
		dir = cfg.ResolvePath(dir)
	}

	ccfg := cache.DefaultConfig(dir)
	if cfg.Cache.TTL > 0 {
		ccfg.TTL = cfg.Cache.TTL
	}
	c, err := cache.Open(ccfg)
	if err != nil {
		return nil, err
	}
	if o.clearCache {
		if err := c.Purge(); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("clear cache: %w", err)
		}
		logger.Info("cache cleared", "dir", dir)
	}
	return c, nil
}

// newSession builds a session from the config file and flags. The caller
// must call close.
func newSession(cmd *cobra.Command, s streams, g *globalOptions, o *lintOptions) (_ *session, err error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	if err := applyLintFlags(&cfg, o, cmd.Flags().Changed); err != nil {
		return nil, err
	}

	ss := &session{
		cfg:       cfg,
		runID:     uuid.NewString(),
		verbosity: o.verbosity(),
		count:     o.count,
		output:    o.output,
		textfile:  cfg.Telemetry.PrometheusTextfile,
	}
	defer func() {
		if err != nil {
			ss.close(context.Background())
		}
	}()

	logger, err := newLogger(g, cfg, s.err)
	if err != nil {
		return nil, err
	}
	ss.logger = logger.With("run_id", ss.runID)

	if ss.format, err = report.ParseFormat(cfg.Format); err != nil {
		return nil, err
	}
	if ss.color, err = ux.ParseColorMode(cfg.Color); err != nil {
		return nil, err
	}
	if ss.patterns, err = glob.New(cfg.Include, cfg.Exclude); err != nil {
		return nil, err
	}
	if ss.registry, err = buildRegistry(cfg, o.ruleFiles); err != nil {
		return nil, err
	}
	if o.diff != "" {
		if ss.diff, err = changes.Load(o.diff); err != nil {
			return nil, err
		}
	}
	if ss.telemetry, err = newTelemetry(cmd.Context(), cfg, s.err); err != nil {
		return nil, err
	}
	if ss.cache, err = openCache(cfg, o, ss.logger); err != nil {
		return nil, err
	}

	engineOpts := []engine.Option{
		engine.WithWorkers(cfg.Jobs),
		engine.WithLogger(logger.Slog()),
		engine.WithSuppression(suppress.Options{
			Window:   cfg.Suppress.Window,
			NoQA:     cfg.NoQAEnabled(),
			Disabled: !cfg.SuppressionEnabled(),
		}),
	}
	if ss.cache != nil {
		engineOpts = append(engineOpts, engine.WithCache(ss.cache))
	}
	ss.engOpts = engineOpts
	ss.engine = engine.New(ss.registry, append(slices.Clip(engineOpts), engine.WithRunID(ss.runID))...)

	ss.logger.Debug("configuration loaded",
		"config", cfg.Path(),
		"rules", len(ss.registry.Enabled()),
		"workers", ss.engine.Workers(),
		"cache", ss.cache != nil,
	)
	return ss, nil
}

// lint runs the engine over paths and applies the diff filter.
func (ss *session) lint(ctx context.Context, in io.Reader, paths []string) (*report.Report, error) {
	opts := []walk.Option{
		walk.WithPatterns(ss.patterns),
		walk.WithMaxFileSize(ss.cfg.MaxFileSize),
	}
	if in != nil {
		opts = append(opts, walk.WithStdin(in))
	}
	src := walk.NewFS(paths, opts...)

	rep, err := ss.engine.Run(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewExitError(ExitInterrupted, ctx.Err())
		}
		return nil, err
	}
	if ss.diff != nil {
		rep = rep.Filter(ss.diff.Keep)
	}
	return rep, nil
}

// render writes the report in the configured format. Problems, the count
// and the summary go to stderr.
func (ss *session) render(s streams, rep *report.Report) (err error) {
	out := s.out
	if ss.output != "" {
		f, err := os.Create(ss.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		out = f
	}

	switch ss.format {
	case report.FormatJSON:
		err = report.WriteJSON(out, rep)
	case report.FormatSARIF:
		err = report.WriteSARIF(out, rep, report.Tool{
			Name:           "apexlint",
			Version:        version,
			InformationURI: informationURI,
			Rules:          ss.registry.All(),
		})
	default:
		styles := ux.NewStyles(ux.NewRenderer(out, ss.color))
		err = report.WriteText(out, rep, report.TextOptions{Verbosity: ss.verbosity, Styles: styles})
	}
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	errStyles := ux.NewStyles(ux.NewRenderer(s.err, ss.color))
	if ss.format == report.FormatText {
		if err := report.WriteProblems(s.err, rep, errStyles); err != nil {
			return err
		}
	}
	if ss.count {
		fmt.Fprintln(s.err, len(rep.Findings))
	}
	if ss.verbosity >= report.VerbosityVerbose {
		return report.WriteSummary(s.err, rep, errStyles)
	}
	return nil
}

// close releases the session's resources. Metrics are written to the
// textfile before the providers shut down.
func (ss *session) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if ss.cache != nil {
		if err := ss.cache.Close(); err != nil {
			ss.logger.Warn("close cache", "error", err)
		}
	}
	if ss.telemetry != nil {
		if ss.textfile != "" {
			if err := ss.telemetry.WriteTextfile(ss.textfile); err != nil {
				ss.logger.Warn("write metrics textfile", "error", err)
			}
		}
		if err := ss.telemetry.Shutdown(ctx); err != nil {
			ss.logger.Warn("telemetry shutdown", "error", err)
		}
	}
	if ss.logger != nil {
		_ = ss.logger.Close()
	}
}
