// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads .apexlint.yaml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/apexlint/services/lint/glob"
)

// ErrInvalidConfig is returned for a config file that cannot be parsed
// or fails validation.
var ErrInvalidConfig = errors.New("invalid config")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("glob", func(fl validator.FieldLevel) bool {
			return glob.Validate(fl.Field().String()) == nil
		})
	})
	return validate
}

// Find looks for FileName in dir and its parents. The boolean is false if
// no file exists.
func Find(dir string) (string, bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Load reads and validates the config file at path. Fields not set in the
// file keep their DefaultConfig value.
func Load(path string) (ApexlintConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ApexlintConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return ApexlintConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.path = path
	return cfg, nil
}

// Discover loads the config found from dir upward, or returns the
// defaults when there is none.
func Discover(dir string) (ApexlintConfig, error) {
	path, ok := Find(dir)
	if !ok {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// Parse decodes and validates config data. Unknown keys are rejected.
func Parse(data []byte) (ApexlintConfig, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return ApexlintConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return ApexlintConfig{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c ApexlintConfig) Validate() error {
	if err := validatorInstance().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ResolvePath makes p relative to the config file's directory. Absolute
// paths and paths of default configs are returned unchanged.
func (c ApexlintConfig) ResolvePath(p string) string {
	if c.path == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(c.path), p)
}
