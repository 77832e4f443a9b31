// Package config provides flag binding, environment capture, logging setup,
// and the optional weftend.toml defaults file. It is a cross-cutting
// concern used by every command; nothing in it touches the evidence path.
//
// The logging subsystem uses Go's stdlib log/slog package exclusively. All
// log output is directed to os.Stderr to keep stdout clean for piped JSON
// and text surfaces.
package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// SetupLogging configures the global slog default logger with the given log
// level and format. The format parameter should be "json" for JSON output
// or any other value for human-readable text output. All log output goes to
// os.Stderr.
//
// Safe to call multiple times; each call replaces the previous global
// logger configuration.
func SetupLogging(level slog.Level, format string) {
	SetupLoggingWithWriter(level, format, os.Stderr)
}

// SetupLoggingWithWriter is the testing variant of SetupLogging, allowing
// log output to be captured in a buffer.
func SetupLoggingWithWriter(level slog.Level, format string, w io.Writer) {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// ResolveLogLevel determines the slog level from CLI flags and environment.
// Priority (highest first): WEFTEND_DEBUG=1, --verbose, --quiet, default
// info.
func ResolveLogLevel(verbose, quiet bool) slog.Level {
	if os.Getenv("WEFTEND_DEBUG") == "1" {
		return slog.LevelDebug
	}
	if verbose {
		return slog.LevelDebug
	}
	if quiet {
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ResolveLogFormat reads WEFTEND_LOG_FORMAT and returns "json" when set to
// json (case-insensitive), otherwise "text".
func ResolveLogFormat() string {
	if strings.EqualFold(os.Getenv("WEFTEND_LOG_FORMAT"), "json") {
		return "json"
	}
	return "text"
}

// NewLogger returns a child logger with a "component" attribute, so log
// output can be filtered by subsystem.
func NewLogger(component string) *slog.Logger {
	return slog.Default().With("component", component)
}
