// Package logging hands out the prefixed charm loggers used by every ispwin
// package and lets the CLI redirect all of them at once (the TUI owns the
// terminal, so while it runs logs must go to a file).
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.Mutex
	output  io.Writer = os.Stderr
	level             = log.InfoLevel
	loggers []*log.Logger
	logFile *os.File
)

// New returns a logger with the given prefix. Loggers created before or after
// Setup share the same output and level.
func New(prefix string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()

	l := log.NewWithOptions(output, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
		Level:           level,
	})
	loggers = append(loggers, l)
	return l
}

// SetLevel sets the level of every logger.
func SetLevel(lvl log.Level) {
	mu.Lock()
	defer mu.Unlock()

	level = lvl
	for _, l := range loggers {
		l.SetLevel(lvl)
	}
}

// SetOutput points every logger at w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	output = w
	for _, l := range loggers {
		l.SetOutput(w)
	}
}

// Setup parses levelName and, when path is non-empty, sends all log output to
// that file (appending). The returned function closes the file.
func Setup(levelName, path string) (func(), error) {
	if levelName != "" {
		lvl, err := log.ParseLevel(levelName)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", levelName, err)
		}
		SetLevel(lvl)
	}

	if path == "" {
		return func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	mu.Lock()
	prev := logFile
	logFile = f
	mu.Unlock()

	SetOutput(f)
	if prev != nil {
		_ = prev.Close()
	}

	return func() {
		SetOutput(os.Stderr)
		mu.Lock()
		if logFile == f {
			logFile = nil
		}
		mu.Unlock()
		_ = f.Close()
	}, nil
}
