// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging provides structured logging for Aleutian Review components.
//
// The logger is a thin layer over log/slog that adds:
//
//   - Level parsing from configuration strings ("debug", "info", ...)
//   - Automatic format selection: human-readable text on a terminal,
//     JSON when stderr is redirected (containers, systemd, CI)
//   - Optional file logging with automatic directory creation
//
// # Basic Usage
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    Service: "review",
//	})
//	defer logger.Close()
//
//	logger.Info("analysis started", "request_id", reqID)
//
// Components below the service layer accept a *slog.Logger; pass
// logger.Slog() to them so that every package logs through one handler.
//
// # Thread Safety
//
// Logger is safe for concurrent use.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity levels.
//
// Levels are ordered by severity: Debug < Info < Warn < Error.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages.
	LevelInfo

	// LevelWarn is for recoverable problems.
	LevelWarn

	// LevelError is for failed operations.
	LevelError
)

// String returns the human-readable name of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// toSlogLevel converts our Level to slog.Level.
func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel parses a configuration string into a Level.
//
// Description:
//
//	Accepts "debug", "info", "warn"/"warning" and "error" in any case.
//	An empty string yields LevelInfo.
//
// Outputs:
//
//	Level - The parsed level
//	error - Non-nil if the string is not a known level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Format selects the console output encoding.
type Format int

const (
	// FormatAuto writes text on a terminal and JSON otherwise.
	FormatAuto Format = iota

	// FormatText always writes human-readable text.
	FormatText

	// FormatJSON always writes JSON objects.
	FormatJSON
)

// Config configures the Logger behavior.
//
// A zero-value Config writes Info+ messages to stderr, choosing the
// format from whether stderr is a terminal.
type Config struct {
	// Level sets the minimum log level. Default: LevelInfo
	Level Level

	// Format selects text or JSON for console output. Default: FormatAuto
	Format Format

	// Service is attached to every entry as the "service" attribute.
	Service string

	// LogDir enables an additional JSON log file named
	// "{Service}_{YYYY-MM-DD}.log". Supports "~" expansion.
	LogDir string

	// Quiet disables console output. File logging is unaffected.
	Quiet bool

	// Output overrides the console writer. Default: os.Stderr
	Output io.Writer
}

// =============================================================================
// Logger
// =============================================================================

// Logger provides structured logging with optional file output.
//
// Always call Close when file logging is enabled so the file is synced.
type Logger struct {
	slog   *slog.Logger
	config Config
	file   *os.File
	mu     sync.Mutex
}

// New creates a new Logger with the given configuration.
//
// Description:
//
//	Builds a console handler (unless Quiet) and, when LogDir is set, a
//	JSON file handler. A LogDir that cannot be created is skipped; the
//	console handler still works.
//
// Inputs:
//
//	config - Logger configuration
//
// Outputs:
//
//	*Logger - Configured logger ready for use
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	var handlers []slog.Handler
	if !config.Quiet {
		if useJSON(config.Format, out) {
			handlers = append(handlers, slog.NewJSONHandler(out, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(out, opts))
		}
	}

	logger := &Logger{config: config}

	if config.LogDir != "" {
		if file, err := openLogFile(config); err == nil {
			logger.file = file
			handlers = append(handlers, slog.NewJSONHandler(file, opts))
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	logger.slog = slog.New(handler)
	return logger
}

// Default returns an Info-level logger for the "review" service.
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "review"})
}

// Debug logs a message at Debug level.
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

// Info logs a message at Info level.
func (l *Logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

// Warn logs a message at Warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

// Error logs a message at Error level.
func (l *Logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

// With returns a new Logger with additional attributes.
//
// The child shares the parent's file handle; only the parent should
// be closed.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:   l.slog.With(args...),
		config: l.config,
		file:   l.file,
	}
}

// Slog returns the underlying slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close syncs and closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		l.file = nil
		return fmt.Errorf("sync log file: %w", err)
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// useJSON decides the console encoding for the given writer.
func useJSON(format Format, out io.Writer) bool {
	switch format {
	case FormatJSON:
		return true
	case FormatText:
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return true
	}
	fd := f.Fd()
	return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}

// openLogFile creates the log directory and opens today's file for append.
func openLogFile(config Config) (*os.File, error) {
	logDir := expandPath(config.LogDir)
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, err
	}
	name := config.Service
	if name == "" {
		name = "review"
	}
	filename := fmt.Sprintf("%s_%s.log", name, time.Now().Format("2006-01-02"))
	return os.OpenFile(filepath.Join(logDir, filename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
}

// =============================================================================
// Multi-Handler (Internal)
// =============================================================================

// multiHandler fans out log records to multiple slog handlers.
type multiHandler struct {
	handlers []slog.Handler
}

// Enabled returns true if any handler is enabled for the level.
func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle sends the record to all enabled handlers.
func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

// WithAttrs returns a new handler with additional attributes.
func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

// WithGroup returns a new handler with a group name.
func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
