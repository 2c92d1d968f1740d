// Package logging sets up the zerolog logger. The interactive UI owns the
// terminal, so log output goes to a file under the data directory unless a
// different file is configured.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Setup builds the root logger. Returns a closer for the log file; the
// closer is non-nil even when logging is disabled.
func Setup(level, file, dataDir string) (zerolog.Logger, func(), error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), func() {}, fmt.Errorf("logging: bad level %q: %w", level, err)
	}
	if lvl == zerolog.Disabled {
		return zerolog.Nop(), func() {}, nil
	}

	if file == "" {
		file = filepath.Join(dataDir, "taskdeck.log")
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Nop(), func() {}, fmt.Errorf("logging: open %s: %w", file, err)
	}

	logger := zerolog.New(f).Level(lvl).With().Timestamp().Logger()
	return logger, func() { _ = f.Close() }, nil
}

// ForWriter is a convenience for non-interactive commands that can log to
// stderr directly.
func ForWriter(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
