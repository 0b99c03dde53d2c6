// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nhle/octobar/internal/model"
)

const consoleTimeFormat = "15:04:05.000"

// Output selects where log lines go.
type Output int

const (
	// Console writes human-readable lines to stderr.
	Console Output = iota
	// File writes JSON lines to the configured log file, leaving the
	// terminal to the UI.
	File
)

// New returns a logger for cfg. The returned closer releases the log file
// and is a no-op for console output.
func New(cfg model.LogConfig, out Output) (zerolog.Logger, io.Closer, error) {
	zerolog.ErrorFieldName = "err"
	level := ParseLevel(cfg.Level, zerolog.InfoLevel)

	switch out {
	case File:
		path := cfg.File
		if path == "" {
			path = filepath.Join(model.ConfigDir(), "octobar.log")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("opening log file: %w", err)
		}
		return zerolog.New(f).Level(level).With().Timestamp().Logger(), f, nil
	default:
		cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: consoleTimeFormat}
		return zerolog.New(cw).Level(level).With().Timestamp().Logger(), nopCloser{}, nil
	}
}

// ParseLevel maps a level name to a zerolog level, returning def for
// anything it does not recognise.
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return def
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
