// Package logging provides structured logging with request and task
// correlation. Loggers are injected; library code never reaches for a
// global.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds the logging configuration.
type Config struct {
	// Level sets the minimum log level: debug, info, warn, error
	Level string

	// Format specifies the output format: json or text
	Format string

	// Output specifies the destination: stdout, stderr, or a file path
	Output string

	// AddSource adds source file and line to log entries
	AddSource bool
}

// DefaultConfig returns sensible defaults: info-level JSON on stdout.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}
}

// ParseLevel converts a string level to slog.Level. Unknown levels
// fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// writer returns the io.Writer for the configured output.
func (c Config) writer() io.Writer {
	switch c.Output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		f, err := os.OpenFile(c.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return os.Stdout
		}
		return f
	}
}
