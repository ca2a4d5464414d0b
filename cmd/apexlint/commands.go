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
	"io"
	"time"

	"github.com/spf13/cobra"
)

// streams are the process's standard streams, replaceable in tests.
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	logJSON    bool
	logDir     string
}

// lintOptions are the flags of the lint and watch commands.
type lintOptions struct {
	selectRules  []string
	ignoreRules  []string
	ruleFiles    []string
	include      []string
	exclude      []string
	jobs         int
	maxFileSize  int64
	matchTimeout time.Duration

	noSuppress bool
	noqa       bool
	window     int

	format  string
	color   string
	verbose int
	quiet   int
	count   bool
	output  string
	diff    string

	noCache    bool
	cache      bool
	cacheDir   string
	clearCache bool

	traces          string
	metrics         string
	metricsTextfile string
}

// verbosity folds -v and -q into one level.
func (o *lintOptions) verbosity() int {
	return o.verbose - o.quiet
}

func newRootCmd(s streams) *cobra.Command {
	g := &globalOptions{}
	o := &lintOptions{}

	root := &cobra.Command{
		Use:   "apexlint [flags] [FILE...]",
		Short: "Validate Salesforce Apex code for common errors",
		Long: `apexlint checks Apex classes and triggers against a set of regular
expression rules and reports every match that is not silenced by a
suppression marker on the same line.

With no FILE, or when FILE is -, source is read from standard input.
Directories are searched recursively for *.cls and *.trigger files.

Exit Codes:
  0   = No findings
  1   = Findings reported
  2   = No findings, but some files could not be linted
  3   = Configuration or internal error
  130 = Interrupted`,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(cmd, s, g, o, args)
		},
	}
	root.SetIn(s.in)
	root.SetOut(s.out)
	root.SetErr(s.err)

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default: .apexlint.yaml in the working directory or a parent)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&g.logJSON, "log-json", false, "write logs to stderr as JSON")
	pf.StringVar(&g.logDir, "log-dir", "", "also write JSON logs to this directory")

	addLintFlags(root, o)

	root.AddCommand(
		newLintCmd(s, g),
		newRulesCmd(s, g),
		newWatchCmd(s, g),
		newServeCmd(s, g),
		newVersionCmd(s),
	)
	return root
}

func newLintCmd(s streams, g *globalOptions) *cobra.Command {
	o := &lintOptions{}
	cmd := &cobra.Command{
		Use:   "lint [flags] [FILE...]",
		Short: "Lint files and directories (the default command)",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(cmd, s, g, o, args)
		},
	}
	addLintFlags(cmd, o)
	return cmd
}

// addEngineFlags registers the flags that shape rule selection, scanning
// and telemetry.
func addEngineFlags(cmd *cobra.Command, o *lintOptions) {
	f := cmd.Flags()
	f.StringSliceVar(&o.selectRules, "select", nil, "only run these rules (names or aliases)")
	f.StringSliceVar(&o.ignoreRules, "ignore", nil, "do not run these rules")
	f.StringSliceVar(&o.ruleFiles, "rules", nil, "load additional rules from YAML files")
	f.IntVarP(&o.jobs, "jobs", "j", 0, "files linted in parallel (0 = one per CPU)")
	f.DurationVar(&o.matchTimeout, "match-timeout", 0, "time limit for one pattern on one file")

	f.BoolVar(&o.noSuppress, "no-suppress", false, "report matches even when a suppression marker is present")
	f.BoolVar(&o.noqa, "noqa", true, "honour 'noqa' comments on suppressible rules")
	f.IntVar(&o.window, "suppress-window", 0, "lines around a match searched for its marker")

	f.BoolVar(&o.cache, "cache", false, "cache results between runs")
	f.BoolVar(&o.noCache, "no-cache", false, "disable the result cache")
	f.StringVar(&o.cacheDir, "cache-dir", "", "result cache directory")
	f.BoolVar(&o.clearCache, "clear-cache", false, "empty the result cache before linting")

	f.StringVar(&o.traces, "traces", "", "trace exporter: otlp, stdout, none")
	f.StringVar(&o.metrics, "metrics", "", "metric exporter: prometheus, stdout, none")
}

// addLintFlags registers the engine flags plus file discovery and output.
func addLintFlags(cmd *cobra.Command, o *lintOptions) {
	addEngineFlags(cmd, o)

	f := cmd.Flags()
	f.StringSliceVar(&o.include, "include", nil, "glob patterns of files to lint inside directories")
	f.StringSliceVar(&o.exclude, "exclude", nil, "glob patterns of files and directories to skip")
	f.Int64Var(&o.maxFileSize, "max-file-size", 0, "skip files larger than this many bytes")

	f.StringVar(&o.format, "format", "", "output format: text, json, sarif")
	f.StringVar(&o.color, "color", "", "colorize the output; WHEN can be 'always', 'auto', or 'never'")
	f.CountVarP(&o.verbose, "verbose", "v", "show rule descriptions (repeatable)")
	f.CountVarP(&o.quiet, "quiet", "q", "show only locations and messages")
	f.BoolVar(&o.count, "count", false, "print the number of findings to standard error")
	f.StringVarP(&o.output, "output", "o", "", "write the report to this file instead of standard output")
	f.StringVar(&o.diff, "diff", "", "only report findings on lines added by this unified diff")
	f.StringVar(&o.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file after the run")
}
