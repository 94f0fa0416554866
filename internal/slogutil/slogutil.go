package slogutil

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// silent is above every standard level
const silent = slog.Level(100)

// NewLogger creates a logger using the line handler, or slog's JSON handler
// when format is "json".
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(NewHandler(w, opts))
}

// NewFileLogger opens path in append mode and returns a logger writing to it.
func NewFileLogger(path string, level slog.Level, format string) (*slog.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	return NewLogger(f, level, format), f, nil
}

// NewDiscardLogger creates a logger that discards all output.
func NewDiscardLogger() *slog.Logger {
	return slog.New(NewHandler(io.Discard, &slog.HandlerOptions{Level: silent}))
}

// LevelFromString converts a string to a slog.Level.
// Returns slog.LevelInfo for unrecognized strings.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromVerbosity maps CLI -v flags onto a level, starting from base.
// quiet silences everything.
func LevelFromVerbosity(base slog.Level, verbosity int, quiet bool) slog.Level {
	if quiet {
		return silent
	}
	switch {
	case verbosity <= 0:
		return base
	case verbosity == 1:
		if base > slog.LevelInfo {
			return slog.LevelInfo
		}
		return base
	default:
		return slog.LevelDebug
	}
}
