// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the review service configuration.
//
// Values are resolved in three layers: built-in defaults, an optional
// YAML file, then environment variables. The merged result is checked
// with validator struct tags before it is returned.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianReview/pkg/logging"
	"github.com/AleutianAI/AleutianReview/services/review/pipeline"
	"github.com/AleutianAI/AleutianReview/services/review/telemetry"
)

// ErrInvalidConfig wraps every validation or environment parse failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete review service configuration.
type Config struct {
	// Port is the HTTP listen port. Default: 5001
	Port int `yaml:"port" validate:"gte=1,lte=65535"`

	// UploadDir holds artifacts for in-flight analyses. Default: ./uploads
	UploadDir string `yaml:"upload_dir" validate:"required"`

	// MaxUploadBytes limits one upload. Zero disables the limit. Default: 10 MiB
	MaxUploadBytes int64 `yaml:"max_upload_bytes" validate:"gte=0"`

	// CORSOrigin is the single allowed browser origin. Empty disables CORS.
	CORSOrigin string `yaml:"cors_origin"`

	// GinMode is "debug", "release" or "test". Empty keeps gin's default.
	GinMode string `yaml:"gin_mode" validate:"omitempty,oneof=debug release test"`

	// ArtifactMaxAge is the age after which the startup sweep removes
	// leftover artifacts. Default: 1h
	ArtifactMaxAge time.Duration `yaml:"artifact_max_age" validate:"gte=0"`

	// ShutdownTimeout bounds graceful HTTP shutdown. Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`

	Engine    EngineConfig     `yaml:"engine"`
	RateLimit RateLimitConfig  `yaml:"rate_limit"`
	Log       LogConfig        `yaml:"log"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// EngineConfig describes the external analysis engine.
type EngineConfig struct {
	// Path is the engine script. Default: engine/main.py
	Path string `yaml:"path" validate:"required"`

	// Interpreter overrides the platform default (py or python3).
	Interpreter string `yaml:"interpreter"`

	// Direct runs Path as an executable with no interpreter.
	Direct bool `yaml:"direct"`

	// Timeout bounds one run. Zero disables the deadline. Default: 2m
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// MaxConcurrent bounds simultaneous runs. Zero is unbounded.
	MaxConcurrent int `yaml:"max_concurrent" validate:"gte=0"`
}

// RateLimitConfig configures the per-client request limiter.
type RateLimitConfig struct {
	// RPS is the sustained requests per second. Zero disables limiting.
	RPS float64 `yaml:"rps" validate:"gte=0"`

	// Burst is the bucket size. Default: 10
	Burst int `yaml:"burst" validate:"gte=0"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`

	// JSON forces JSON output even on a terminal.
	JSON bool `yaml:"json"`

	// Dir enables an additional JSON log file in this directory.
	Dir string `yaml:"dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:            5001,
		UploadDir:       "./uploads",
		MaxUploadBytes:  10 << 20,
		CORSOrigin:      "http://localhost:5173",
		ArtifactMaxAge:  time.Hour,
		ShutdownTimeout: 30 * time.Second,
		Engine: EngineConfig{
			Path:    "engine/main.py",
			Timeout: 2 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Burst: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load resolves the configuration.
//
// # Description
//
// Starts from Default, overlays the YAML file at path when path is not
// empty, then applies environment overrides and validates the result.
// A missing file named explicitly is an error.
//
// # Inputs
//
//   - path: YAML file location, or "" for defaults and environment only
//
// # Outputs
//
//   - Config: The merged configuration
//   - error: Read, decode or validation failure
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read the config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse the config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// PipelineEngine converts the engine section for the pipeline package.
func (c EngineConfig) PipelineEngine() pipeline.EngineConfig {
	return pipeline.EngineConfig{
		Path:        c.Path,
		Interpreter: c.Interpreter,
		Direct:      c.Direct,
		Timeout:     c.Timeout,
	}
}

// LoggingConfig converts the log section for pkg/logging.
func (c LogConfig) LoggingConfig(service string) (logging.Config, error) {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return logging.Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	format := logging.FormatAuto
	if c.JSON {
		format = logging.FormatJSON
	}
	return logging.Config{
		Level:   level,
		Format:  format,
		Service: service,
		LogDir:  c.Dir,
	}, nil
}

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// applyEnv overlays environment variables onto cfg.
//
// PORT and GIN_MODE are honored unprefixed for container platforms.
// Everything else uses the REVIEW_ prefix.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	int64v := func(key string, dst *int64) {
		if v, ok := lookup(key); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	integer("PORT", &cfg.Port)
	str("GIN_MODE", &cfg.GinMode)

	str("REVIEW_UPLOAD_DIR", &cfg.UploadDir)
	int64v("REVIEW_MAX_UPLOAD_BYTES", &cfg.MaxUploadBytes)
	str("REVIEW_CORS_ORIGIN", &cfg.CORSOrigin)
	duration("REVIEW_ARTIFACT_MAX_AGE", &cfg.ArtifactMaxAge)
	duration("REVIEW_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	str("REVIEW_ENGINE_PATH", &cfg.Engine.Path)
	str("REVIEW_ENGINE_INTERPRETER", &cfg.Engine.Interpreter)
	boolean("REVIEW_ENGINE_DIRECT", &cfg.Engine.Direct)
	duration("REVIEW_ENGINE_TIMEOUT", &cfg.Engine.Timeout)
	integer("REVIEW_ENGINE_MAX_CONCURRENT", &cfg.Engine.MaxConcurrent)

	float("REVIEW_RATE_LIMIT_RPS", &cfg.RateLimit.RPS)
	integer("REVIEW_RATE_LIMIT_BURST", &cfg.RateLimit.Burst)

	str("REVIEW_LOG_LEVEL", &cfg.Log.Level)
	boolean("REVIEW_LOG_JSON", &cfg.Log.JSON)
	str("REVIEW_LOG_DIR", &cfg.Log.Dir)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
