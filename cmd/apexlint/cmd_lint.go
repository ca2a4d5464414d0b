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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/apexlint/pkg/ux"
)

// runLint lints args once and converts the report into an exit status.
func runLint(cmd *cobra.Command, s streams, g *globalOptions, o *lintOptions, args []string) error {
	ctx := cmd.Context()

	ss, err := newSession(cmd, s, g, o)
	if err != nil {
		return err
	}
	defer ss.close(ctx)

	spin := ss.spinner(s)
	spin.Start()
	rep, err := ss.lint(ctx, s.in, args)
	spin.Stop()
	if err != nil {
		return err
	}
	if err := ss.render(s, rep); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return NewExitError(ExitInterrupted, nil)
	}
	return statusError(rep)
}

// spinner returns a progress indicator on stderr. It stays silent unless
// stderr is a terminal and the run is not quiet.
func (ss *session) spinner(s streams) *ux.Spinner {
	w := s.err
	if ss.verbosity < 0 {
		w = io.Discard
	}
	return ux.NewSpinner(w, "linting", ux.NewStyles(ux.NewRenderer(w, ss.color)))
}
