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
	"io"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianReview/pkg/logging"
	"github.com/AleutianAI/AleutianReview/services/review/config"
)

// serviceName tags every log entry and names the tracer resource.
const serviceName = "review"

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "reviewd",
		Short: "Code review analysis service",
		Long: `reviewd accepts a source file, runs the configured analysis engine
on it as a child process, and returns the engine's structured report.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newAnalyzeCmd(opts))
	return rootCmd
}

// load resolves configuration and builds the logger for a command.
func (o *rootOptions) load(stderr io.Writer) (config.Config, *logging.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	logCfg, err := cfg.Log.LoggingConfig(serviceName)
	if err != nil {
		return config.Config{}, nil, err
	}
	logCfg.Output = stderr
	logger := logging.New(logCfg)
	return cfg, logger, nil
}

// exitError marks a failure whose details were already written.
type exitError struct{ outcome string }

func (e *exitError) Error() string { return fmt.Sprintf("analysis failed: %s", e.outcome) }
