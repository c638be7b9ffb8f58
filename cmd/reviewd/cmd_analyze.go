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
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianReview/pkg/logging"
	"github.com/AleutianAI/AleutianReview/services/review/config"
	"github.com/AleutianAI/AleutianReview/services/review/handlers"
	"github.com/AleutianAI/AleutianReview/services/review/pipeline"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze FILE",
		Short: "Analyze one file locally and print the report as JSON",
		Long: `analyze runs the same pipeline as POST /analysis without starting
the server. The report is printed to stdout. On failure the error body
the API would return is printed instead and the command exits 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer logger.Close()

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer f.Close()

			p, err := newLocalPipeline(cfg, logger)
			if err != nil {
				return err
			}

			report, err := p.Analyze(ctx, f, filepath.Base(args[0]))
			if err != nil {
				_, body := handlers.ErrorResponseFor(err)
				if writeErr := writeJSON(cmd.OutOrStdout(), body); writeErr != nil {
					return writeErr
				}
				return &exitError{outcome: pipeline.Classify(err)}
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
}

// newLocalPipeline builds a pipeline without the HTTP stack.
func newLocalPipeline(cfg config.Config, logger *logging.Logger) (*pipeline.Pipeline, error) {
	store := pipeline.NewArtifactStore(cfg.UploadDir, logger.Slog())
	if err := store.EnsureDir(); err != nil {
		return nil, err
	}
	resolver := pipeline.NewResolver(cfg.Engine.PipelineEngine())
	return pipeline.New(store, resolver, pipeline.WithLogger(logger.Slog())), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
