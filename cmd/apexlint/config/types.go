// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"time"

	"github.com/AleutianAI/apexlint/services/lint/glob"
	"github.com/AleutianAI/apexlint/services/lint/walk"
)

// FileName is the project configuration file looked up from the working
// directory upward.
const FileName = ".apexlint.yaml"

// ApexlintConfig is the content of .apexlint.yaml. Command-line flags
// override it.
type ApexlintConfig struct {
	// Rule selection, by name or alias.
	Select []string `yaml:"select"`
	Ignore []string `yaml:"ignore"`

	// RuleFiles are YAML rule files loaded after the built-in rules.
	// Relative paths are resolved against the config file's directory.
	RuleFiles []string `yaml:"rule_files" validate:"dive,required"`

	// File discovery.
	Include     []string `yaml:"include" validate:"dive,glob"`
	Exclude     []string `yaml:"exclude" validate:"dive,glob"`
	MaxFileSize int64    `yaml:"max_file_size" validate:"gte=0"`

	// Jobs is the number of files linted in parallel. 0 means one per CPU.
	Jobs int `yaml:"jobs" validate:"gte=0"`

	// MatchTimeout bounds a single pattern evaluation.
	MatchTimeout time.Duration `yaml:"match_timeout" validate:"gte=0"`

	// Output.
	Format   string `yaml:"format" validate:"omitempty,oneof=text json sarif"`
	Color    string `yaml:"color" validate:"omitempty,oneof=auto always never"`
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	Suppress  SuppressConfig  `yaml:"suppress"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// path is the file this config was read from; empty for defaults.
	path string
}

// SuppressConfig controls suppression markers.
type SuppressConfig struct {
	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`

	// Window is how many neighbouring lines are searched for a marker.
	Window int `yaml:"window" validate:"gte=0"`

	// NoQA also honours "noqa" comments. Defaults to true when omitted.
	NoQA *bool `yaml:"noqa"`
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Dir     string        `yaml:"dir"`
	TTL     time.Duration `yaml:"ttl" validate:"gte=0"`
}

// TelemetryConfig controls traces and metrics.
type TelemetryConfig struct {
	Traces             string `yaml:"traces" validate:"omitempty,oneof=otlp stdout none"`
	Metrics            string `yaml:"metrics" validate:"omitempty,oneof=prometheus stdout none"`
	PrometheusTextfile string `yaml:"prometheus_textfile"`
	OTLPEndpoint       string `yaml:"otlp_endpoint" validate:"omitempty,hostname_port"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() ApexlintConfig {
	return ApexlintConfig{
		Include:     append([]string(nil), glob.DefaultIncludes...),
		Exclude:     append([]string(nil), glob.DefaultExcludes...),
		MaxFileSize: walk.DefaultMaxFileSize,
		Format:      "text",
		Color:       "auto",
		LogLevel:    "warn",
	}
}

// Path returns the file the config was loaded from, or "" for defaults.
func (c ApexlintConfig) Path() string {
	return c.path
}

// SuppressionEnabled reports whether suppression markers are honoured.
func (c ApexlintConfig) SuppressionEnabled() bool {
	return c.Suppress.Enabled == nil || *c.Suppress.Enabled
}

// NoQAEnabled reports whether "noqa" comments silence suppressible rules.
func (c ApexlintConfig) NoQAEnabled() bool {
	return c.Suppress.NoQA == nil || *c.Suppress.NoQA
}
