// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mschirtzinger/lifedeck/internal/config"
)

// Logger is a configured logger. Level can be changed while running,
// which the daemon does when the config file is edited.
type Logger struct {
	*slog.Logger
	Level *slog.LevelVar

	closer io.Closer
}

// New returns a logger writing to cfg.File with rotation, or to stderr
// when no file is configured.
func New(cfg config.LogConfig, stderr io.Writer) (*Logger, error) {
	level := new(slog.LevelVar)
	if err := SetLevel(level, cfg.Level); err != nil {
		return nil, err
	}

	out := stderr
	var closer io.Closer
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rot := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out, closer = rot, rot
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		h = slog.NewJSONHandler(out, opts)
	case "", "text":
		h = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return &Logger{Logger: slog.New(h), Level: level, closer: closer}, nil
}

// SetLevel parses name (debug, info, warn, error) into v.
func SetLevel(v *slog.LevelVar, name string) error {
	if name == "" {
		name = "info"
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	v.Set(l)
	return nil
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) *slog.Logger {
	return l.With("component", name)
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
