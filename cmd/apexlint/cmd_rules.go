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
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/apexlint/pkg/ux"
	"github.com/AleutianAI/apexlint/services/lint/rules"
)

type rulesOptions struct {
	ruleFiles []string
	json      bool
	color     string
	verbose   bool
}

func newRulesCmd(s streams, g *globalOptions) *cobra.Command {
	o := &rulesOptions{}
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the available rules",
		Long: `List every registered rule: the built-in rules plus those loaded
from rule files, marking which are enabled by the current configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(s, g, o)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&o.ruleFiles, "rules", nil, "load additional rules from YAML files")
	f.BoolVar(&o.json, "json", false, "print rules as JSON")
	f.StringVar(&o.color, "color", "auto", "colorize the output; WHEN can be 'always', 'auto', or 'never'")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "show rule descriptions and patterns")
	return cmd
}

func runRules(s streams, g *globalOptions, o *rulesOptions) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	reg, err := buildRegistry(cfg, o.ruleFiles)
	if err != nil {
		return err
	}

	infos := reg.Describe()

	if o.json {
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	mode, err := ux.ParseColorMode(o.color)
	if err != nil {
		return err
	}
	return writeRulesText(s, infos, ux.NewStyles(ux.NewRenderer(s.out, mode)), o.verbose)
}

func writeRulesText(s streams, infos []rules.Info, st ux.Styles, verbose bool) error {
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, r := range infos {
		state := "enabled"
		if !r.Enabled {
			state = "disabled"
		}
		aliases := "-"
		if len(r.Aliases) > 0 {
			aliases = strings.Join(r.Aliases, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Severity, state, aliases)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !verbose {
		return nil
	}

	for _, r := range infos {
		fmt.Fprintf(s.out, "\n%s\n", st.Bold.Render(r.Name))
		fmt.Fprintf(s.out, "  %s\n", r.Summary)
		for _, line := range strings.Split(r.Description, "\n") {
			if line != "" {
				fmt.Fprintf(s.out, "  %s\n", st.Description.Render(line))
			}
		}
		fmt.Fprintf(s.out, "  %s %s\n", st.Muted.Render("pattern:"), r.Pattern)
	}
	return nil
}
