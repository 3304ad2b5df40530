// Package logging configures the structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ParseLevel maps a level name to a slog level. Unknown names yield info
// and ok=false.
func ParseLevel(name string) (level slog.Level, ok bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Setup builds a text logger writing to the file at path and installs it as
// the slog default. When the file cannot be opened the logger writes to
// fallback, or drops records if fallback is nil, and the open error is
// returned. The close function is never nil.
func Setup(levelName, path string, fallback io.Writer) (*slog.Logger, func() error, error) {
	level, ok := ParseLevel(levelName)
	if fallback == nil {
		fallback = io.Discard
	}
	var (
		out     = fallback
		closeFn = func() error { return nil }
		openErr error
	)
	if path != "" {
		f, err := openLogFile(path)
		if err != nil {
			openErr = fmt.Errorf("open log file: %w", err)
		} else {
			out = f
			closeFn = f.Close
		}
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	if !ok {
		logger.Warn("invalid log level configured, using default level",
			"configured_level", levelName,
			"default_level", "info")
	}
	slog.SetDefault(logger)
	return logger, closeFn, openErr
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
