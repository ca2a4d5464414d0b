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
	"fmt"
	"net"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/apexlint/services/lint/rules"
	"github.com/AleutianAI/apexlint/services/lint/server"
)

type serveOptions struct {
	lintOptions
	addr         string
	maxFiles     int
	maxBodyBytes int64
}

func newServeCmd(s streams, g *globalOptions) *cobra.Command {
	o := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve [flags]",
		Short: "Serve the linter over HTTP",
		Long: `Serve the linter over HTTP until interrupted.

Endpoints:
  POST /v1/lint    lint {"files": [{"path": ..., "content": ...}]}
  GET  /v1/rules   list the rules
  GET  /v1/health  health check
  GET  /metrics    Prometheus metrics (with --metrics prometheus)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, s, g, o)
		},
	}
	addEngineFlags(cmd, &o.lintOptions)
	f := cmd.Flags()
	f.StringVar(&o.addr, "addr", "127.0.0.1:8080", "listen address")
	f.IntVar(&o.maxFiles, "max-files", server.DefaultMaxFiles, "maximum files in one request")
	f.Int64Var(&o.maxBodyBytes, "max-body-bytes", server.DefaultMaxBodyBytes, "maximum request body size")
	return cmd
}

func runServe(cmd *cobra.Command, s streams, g *globalOptions, o *serveOptions) error {
	ctx := cmd.Context()
	ss, err := newSession(cmd, s, g, &o.lintOptions)
	if err != nil {
		return err
	}
	defer ss.close(ctx)

	factory := func() (*rules.Registry, error) {
		return buildRegistry(ss.cfg, o.ruleFiles)
	}
	handlers, err := server.NewHandlers(factory, server.Config{
		Version:      version,
		MaxFiles:     o.maxFiles,
		MaxBodyBytes: o.maxBodyBytes,
		Logger:       ss.logger.Slog(),
	}, ss.engOpts...)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	router := server.NewRouter(handlers, ss.telemetry.Gatherer(), ss.logger.Slog())

	ln, err := net.Listen("tcp", o.addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	ss.logger.Info("serving", "addr", ln.Addr().String())
	fmt.Fprintf(s.err, "apexlint: listening on http://%s\n", ln.Addr())

	return server.Serve(ctx, ln, router)
}
