/*
Package vsslog is the process-wide structured logger.

Adapted from a zerolog wrapper pattern: a global Logger, a Config
describing level/output-format, and an Init that builds it. This package
adds Reopen, which re-opens the configured log file in place so a SIGHUP
can rotate logs without restarting the process (the teacher package never
rotates, since it only ever logs to stdout).
*/
package vsslog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, set by Init.
var Logger zerolog.Logger

// Level is a logging verbosity.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config describes how to build the global logger.
type Config struct {
	Level Level
	// JSONOutput selects structured JSON lines over the human-readable
	// console writer.
	JSONOutput bool
	// OutputPath, if non-empty, is a file path the logger writes to
	// instead of stdout. Reopen() re-opens this same path.
	OutputPath string
}

var state struct {
	mu   sync.Mutex
	cfg  Config
	file *os.File
}

// Init builds the global Logger from cfg.
func Init(cfg Config) error {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.cfg = cfg

	out, err := openOutput(cfg)
	if err != nil {
		return err
	}
	state.file = out.closer

	zerolog.SetGlobalLevel(toZerologLevel(cfg.Level))
	Logger = newLogger(cfg, out.writer)
	return nil
}

type outputHandle struct {
	writer io.Writer
	closer *os.File // nil when writing to stdout
}

func openOutput(cfg Config) (outputHandle, error) {
	if cfg.OutputPath == "" {
		return outputHandle{writer: os.Stdout}, nil
	}
	f, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return outputHandle{}, fmt.Errorf("vsslog: open %s: %w", cfg.OutputPath, err)
	}
	return outputHandle{writer: f, closer: f}, nil
}

func newLogger(cfg Config, w io.Writer) zerolog.Logger {
	if cfg.JSONOutput {
		return zerolog.New(w).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

func toZerologLevel(l Level) zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Reopen closes the current log file (if any) and opens a fresh handle at
// the same OutputPath, picking up a rotation done by an external tool
// (e.g. logrotate moving the old file aside) without dropping log lines
// written afterward. A no-op when logging to stdout.
func Reopen() error {
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.cfg.OutputPath == "" {
		return nil
	}

	out, err := openOutput(state.cfg)
	if err != nil {
		return err
	}
	if state.file != nil {
		state.file.Close()
	}
	state.file = out.closer
	Logger = newLogger(state.cfg, out.writer)
	return nil
}

// WithComponent returns a child logger carrying a component field.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}
