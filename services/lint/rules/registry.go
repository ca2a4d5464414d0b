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
	"regexp"
	"strconv"
	"sync"
	"text/template"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/apexlint/services/lint/glob"
)

// DefaultMatchTimeout bounds a single regex evaluation over one file.
const DefaultMatchTimeout = 2 * time.Second

var (
	ruleNameRe = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

	validateOnce sync.Once
	validate     *validator.Validate
)

// validatorInstance returns the shared validator with the rule-name tag
// registered.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		err := validate.RegisterValidation("rulename", func(fl validator.FieldLevel) bool {
			return ruleNameRe.MatchString(fl.Field().String())
		})
		if err != nil {
			panic(fmt.Sprintf("rules: register rulename validation: %v", err))
		}
	})
	return validate
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMatchTimeout sets the per-regex match timeout for rules registered
// afterwards. Zero or negative disables the timeout.
func WithMatchTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.timeout = d
	}
}

// Registry is an ordered set of rules keyed by name.
//
// Description:
//
//	Registration order is preserved and is the tie-break order for
//	findings at the same position. Rules can be disabled and re-enabled by
//	name or alias without being removed.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	rules    []*Rule
	byName   map[string]*Rule
	disabled map[string]bool
	timeout  time.Duration
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byName:   make(map[string]*Rule),
		disabled: make(map[string]bool),
		timeout:  DefaultMatchTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates, compiles and appends a rule.
//
// Description:
//
//	Fills defaults (severity, filenames), validates the definition,
//	compiles every pattern and parses the message template. The new rule
//	is enabled.
//
// Inputs:
//
//	def - The rule definition. It is copied; later changes do not affect
//	      the registered rule.
//
// Outputs:
//
//	*Rule - The registered rule.
//	error - Wraps ErrDuplicateRuleName, ErrInvalidRulePattern or
//	        ErrInvalidRuleDefinition.
func (r *Registry) Register(def Definition) (*Rule, error) {
	if def.Severity == 0 {
		def.Severity = SeverityError
	}
	if len(def.Filenames) == 0 {
		def.Filenames = DefaultFilenames
	}
	def.Aliases = append([]string(nil), def.Aliases...)
	def.Filenames = append([]string(nil), def.Filenames...)

	if err := validatorInstance().Struct(def); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRuleDefinition, def.Name, err)
	}
	for _, p := range def.Filenames {
		if err := glob.Validate(p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRuleDefinition, def.Name, err)
		}
	}

	tmpl, err := template.New(def.Name).Option("missingkey=error").Parse(def.Summary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: message template: %v", ErrInvalidRuleDefinition, def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range append([]string{def.Name}, def.Aliases...) {
		if _, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRuleName, name)
		}
	}

	m, err := def.Matcher.compiled(r.timeout)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", def.Name, err)
	}
	def.Matcher = m

	rule := &Rule{def: def, index: len(r.rules), message: tmpl}
	r.rules = append(r.rules, rule)
	r.byName[def.Name] = rule
	for _, alias := range def.Aliases {
		r.byName[alias] = rule
	}
	return rule, nil
}

// MustRegister registers definitions and panics on error. For built-in
// rule tables only.
func (r *Registry) MustRegister(defs ...Definition) {
	for _, def := range defs {
		if _, err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

// Lookup finds a rule by name or alias.
func (r *Registry) Lookup(name string) (*Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.byName[name]
	return rule, ok
}

// All returns every rule in registration order.
func (r *Registry) All() []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Rule(nil), r.rules...)
}

// Enabled returns the enabled rules in registration order.
func (r *Registry) Enabled() []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if !r.disabled[rule.Name()] {
			out = append(out, rule)
		}
	}
	return out
}

// IsEnabled reports whether the named rule is registered and enabled.
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.byName[name]
	return ok && !r.disabled[rule.Name()]
}

// Info is the printable description of one registered rule.
type Info struct {
	Name         string   `json:"name"`
	Aliases      []string `json:"aliases,omitempty"`
	Severity     Severity `json:"severity"`
	Enabled      bool     `json:"enabled"`
	Suppressible bool     `json:"suppressible"`
	Summary      string   `json:"summary"`
	Description  string   `json:"description,omitempty"`
	Pattern      string   `json:"pattern"`
}

// Describe returns an Info for every rule in registration order.
func (r *Registry) Describe() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, len(r.rules))
	for i, rule := range r.rules {
		out[i] = Info{
			Name:         rule.Name(),
			Aliases:      rule.Aliases(),
			Severity:     rule.Severity(),
			Enabled:      !r.disabled[rule.Name()],
			Suppressible: rule.Suppressible(),
			Summary:      rule.Summary(),
			Description:  rule.Description(),
			Pattern:      rule.Matcher().String(),
		}
	}
	return out
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// Names returns the registered rule names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.Name()
	}
	return names
}

// Enable re-enables a rule by name or alias.
func (r *Registry) Enable(name string) error {
	return r.setDisabled(name, false)
}

// Disable disables a rule by name or alias.
func (r *Registry) Disable(name string) error {
	return r.setDisabled(name, true)
}

func (r *Registry) setDisabled(name string, disabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRule, name)
	}
	if disabled {
		r.disabled[rule.Name()] = true
	} else {
		delete(r.disabled, rule.Name())
	}
	return nil
}

// Select applies a selection: when selectNames is non-empty only those
// rules stay enabled, then every rule in ignore is disabled. Unknown
// names fail without changing the registry.
func (r *Registry) Select(selectNames, ignore []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	resolve := func(names []string) (map[string]bool, error) {
		set := make(map[string]bool, len(names))
		for _, name := range names {
			rule, ok := r.byName[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownRule, name)
			}
			set[rule.Name()] = true
		}
		return set, nil
	}
	selected, err := resolve(selectNames)
	if err != nil {
		return err
	}
	ignored, err := resolve(ignore)
	if err != nil {
		return err
	}

	for _, rule := range r.rules {
		name := rule.Name()
		off := ignored[name] || (len(selected) > 0 && !selected[name])
		if off {
			r.disabled[name] = true
		} else {
			delete(r.disabled, name)
		}
	}
	return nil
}

// Fingerprint returns a stable digest of the enabled rule set. Cached lint
// results are only valid for the fingerprint that produced them.
func (r *Registry) Fingerprint() string {
	d := xxhash.New()
	for _, rule := range r.Enabled() {
		fmt.Fprintf(d, "%d\x00%s\x00%s\x00%s\x00%d\x00%t\x00%s\x00%v\x00",
			rule.Index(), rule.Name(), rule.Matcher().String(), rule.Summary(),
			rule.Severity(), rule.Suppressible(), rule.Marker(), rule.Filenames())
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
