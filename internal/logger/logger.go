// Package logger provides the process wide leveled logger.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Options configures Init.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Format is json or text. Empty means json.
	Format string
	// File is an optional log file path. Empty means stderr.
	File string
	// Service is attached to every record as the "service" attribute.
	Service string
}

var (
	mu      sync.Mutex
	std     = slog.New(slog.NewTextHandler(io.Discard, nil))
	logFile *os.File
)

// Init configures the package logger. It can be called again to reconfigure,
// in which case a previously opened log file is closed.
func Init(opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stderr
	var f *os.File
	if opts.File != "" {
		if err := ensureParentDir(opts.File); err != nil {
			return err
		}
		f, err = os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		out = f
	}

	l := New(out, level, opts.Format)
	if opts.Service != "" {
		l = l.With("service", opts.Service)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	std = l
	slog.SetDefault(l)
	return nil
}

// New builds a logger writing to w. It does not touch the package logger.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, hopts))
	}
	return slog.New(slog.NewJSONHandler(w, hopts))
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Close closes the underlying log file, if open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		std = slog.New(slog.NewTextHandler(io.Discard, nil))
		return err
	}
	return nil
}

// L returns the structured logger for callers that want attributes.
func L() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return std
}

// Debugf logs debug messages.
func Debugf(format string, args ...any) { write(slog.LevelDebug, format, args...) }

// Infof logs informational messages.
func Infof(format string, args ...any) { write(slog.LevelInfo, format, args...) }

// Warnf logs warnings.
func Warnf(format string, args ...any) { write(slog.LevelWarn, format, args...) }

// Errorf logs errors.
func Errorf(format string, args ...any) { write(slog.LevelError, format, args...) }

func write(level slog.Level, format string, args ...any) {
	l := L()
	if !l.Enabled(context.Background(), level) {
		return
	}
	l.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
