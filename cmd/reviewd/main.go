// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command reviewd runs the code review analysis service.
//
// # Usage
//
//	# Serve the HTTP API
//	reviewd serve --config review.yaml
//
//	# Analyze one file locally and print the report
//	reviewd analyze ./main.py
//
// # Environment Variables
//
//   - PORT: HTTP server port (default: 5001)
//   - REVIEW_ENGINE_PATH: Analysis engine script (default: engine/main.py)
//   - REVIEW_UPLOAD_DIR: Artifact directory (default: ./uploads)
//   - OTEL_TRACES_EXPORTER: otlp, stdout or none (default: none)
//
// See services/review/config for the full list.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
