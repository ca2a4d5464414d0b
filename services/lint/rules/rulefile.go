// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// YAML Rule Files
// =============================================================================

// RuleFile is the document format for externally supplied rules:
//
//	rules:
//	  - name: no-hardcoded-id
//	    summary: "hardcoded record id {{.Text}}"
//	    severity: warning
//	    suppressible: true
//	    match:
//	      pattern: "'[a-zA-Z0-9]{15}(?:[a-zA-Z0-9]{3})?'"
//	  - name: debug-then-commit
//	    summary: "System.debug before Database.commit"
//	    match:
//	      all_of:
//	        window: 5
//	        matchers:
//	          - pattern: 'System\.debug'
//	          - pattern: 'Database\.commit'
type RuleFile struct {
	Rules []RuleSpec `yaml:"rules" validate:"required,min=1,dive"`
}

// RuleSpec is one rule in a RuleFile.
type RuleSpec struct {
	Name         string    `yaml:"name" validate:"required,rulename"`
	Aliases      []string  `yaml:"aliases" validate:"dive,required"`
	Summary      string    `yaml:"summary" validate:"required"`
	Description  string    `yaml:"description"`
	Severity     Severity  `yaml:"severity"`
	Suppressible bool      `yaml:"suppressible"`
	Marker       string    `yaml:"marker"`
	Filenames    []string  `yaml:"filenames" validate:"dive,required"`
	Match        MatchSpec `yaml:"match"`
}

// MatchSpec describes a matcher. Exactly one of Pattern, AllOf and AnyOf
// must be set.
type MatchSpec struct {
	Pattern        string        `yaml:"pattern"`
	Flags          []string      `yaml:"flags" validate:"dive,oneof=ignore-case verbose multiline"`
	OutsideStrings bool          `yaml:"outside_strings"`
	AllOf          *SequenceSpec `yaml:"all_of"`
	AnyOf          []MatchSpec   `yaml:"any_of" validate:"dive"`
}

// SequenceSpec is the body of an all_of matcher.
type SequenceSpec struct {
	Window   int         `yaml:"window" validate:"gte=-1"`
	Matchers []MatchSpec `yaml:"matchers" validate:"min=2,dive"`
}

// ParseRuleFile decodes and validates a rule document.
func ParseRuleFile(data []byte) ([]Definition, error) {
	var doc RuleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode rule file: %v", ErrInvalidRuleDefinition, err)
	}
	if err := validatorInstance().Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRuleDefinition, err)
	}

	defs := make([]Definition, 0, len(doc.Rules))
	for _, spec := range doc.Rules {
		m, err := spec.Match.matcher()
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", spec.Name, err)
		}
		defs = append(defs, Definition{
			Name:         spec.Name,
			Aliases:      spec.Aliases,
			Summary:      spec.Summary,
			Description:  spec.Description,
			Severity:     spec.Severity,
			Suppressible: spec.Suppressible,
			Marker:       spec.Marker,
			Filenames:    spec.Filenames,
			Matcher:      m,
		})
	}
	return defs, nil
}

// LoadRuleFile reads and parses a rule document from disk.
func LoadRuleFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file %s: %w", path, err)
	}
	defs, err := ParseRuleFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// RegisterAll registers definitions in order, stopping at the first error.
func (r *Registry) RegisterAll(defs []Definition) error {
	for _, def := range defs {
		if _, err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func (s MatchSpec) matcher() (Matcher, error) {
	set := 0
	if s.Pattern != "" {
		set++
	}
	if s.AllOf != nil {
		set++
	}
	if len(s.AnyOf) > 0 {
		set++
	}
	if set != 1 {
		return Matcher{}, fmt.Errorf("%w: match needs exactly one of pattern, all_of, any_of", ErrInvalidRuleDefinition)
	}

	switch {
	case s.Pattern != "":
		var flags []Flag
		for _, name := range s.Flags {
			f, err := ParseFlag(name)
			if err != nil {
				return Matcher{}, err
			}
			flags = append(flags, f)
		}
		if s.OutsideStrings {
			return NotStringMatcher(s.Pattern, flags...), nil
		}
		return Single(s.Pattern, flags...), nil

	case s.AllOf != nil:
		children, err := matchers(s.AllOf.Matchers)
		if err != nil {
			return Matcher{}, err
		}
		return AllOf(s.AllOf.Window, children...), nil

	default:
		children, err := matchers(s.AnyOf)
		if err != nil {
			return Matcher{}, err
		}
		return AnyOf(children...), nil
	}
}

func matchers(specs []MatchSpec) ([]Matcher, error) {
	out := make([]Matcher, 0, len(specs))
	for _, spec := range specs {
		m, err := spec.matcher()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
