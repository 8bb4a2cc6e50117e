// Package logging builds the zerolog logger shared by every command.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level  string
	Format string // json or console
	Output io.Writer
}

func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var zl zerolog.Logger
	if cfg.Format == "json" {
		zl = zerolog.New(out)
	} else {
		zl = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}

	return zl.Level(ParseLevel(cfg.Level)).With().Timestamp().Str("service", "dorsal").Logger()
}

// ParseLevel maps a level name to zerolog, falling back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// OpenFile opens path for appending, creating its directory. Console output
// written to a file carries no colour codes.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// NewFile is New writing to a file; the caller closes the returned file.
func NewFile(cfg Config, path string) (zerolog.Logger, *os.File, error) {
	f, err := OpenFile(path)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	if cfg.Format == "json" {
		cfg.Output = f
		return New(cfg), f, nil
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: f, NoColor: true, TimeFormat: time.RFC3339})
	return zl.Level(ParseLevel(cfg.Level)).With().Timestamp().Str("service", "dorsal").Logger(), f, nil
}
