// Package logger provides leveled structured logging on top of slog.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// skipToCaller is the runtime.Caller depth from callSite up to the code
// that invoked the Logger method: callSite, emit, the level method, caller.
const skipToCaller = 3

// Logger is the structured logging interface used throughout the service.
// Every method takes a context so handlers can pick up request-scoped values.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Fatal(ctx context.Context, msg string, fields ...Field)

	Named(name string) Logger
}

// Field is a single structured logging attribute.
type Field struct {
	Key   string
	Value any
}

// Field constructors.

func String(key, val string) Field {
	return Field{Key: key, Value: val}
}

func Int(key string, val int) Field {
	return Field{Key: key, Value: val}
}

func Float64(key string, val float64) Field {
	return Field{Key: key, Value: val}
}

func Any(key string, val any) Field {
	return Field{Key: key, Value: val}
}

func Error(err error) Field {
	return Field{Key: "error", Value: err}
}

// settings holds the configuration applied during Init.
type settings struct {
	writer io.Writer
	level  string
}

// Option configures the global logger during Init.
type Option func(*settings)

// WithWriter directs log output somewhere other than stdout.
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.writer = w
		}
	}
}

// WithLevel sets the initial logging level by name. Recognized names
// are debug, info, warn or warning, and error; case is ignored.
func WithLevel(level string) Option {
	return func(s *settings) {
		if level != "" {
			s.level = level
		}
	}
}

// slogAdapter backs Logger with a slog.Logger.
type slogAdapter struct {
	base *slog.Logger
}

func (l *slogAdapter) Named(name string) Logger {
	return &slogAdapter{base: l.base.WithGroup(name)}
}

// emit tags the record with its call site and hands it to slog.
func (l *slogAdapter) emit(ctx context.Context, level slog.Level, msg string, fields []Field) {
	fields = append(fields, String("source", callSite()))
	l.base.LogAttrs(ctx, level, msg, toAttrs(fields)...)
}

func (l *slogAdapter) Info(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelInfo, msg, fields)
}

func (l *slogAdapter) Error(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelError, msg, fields)
}

func (l *slogAdapter) Debug(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelDebug, msg, fields)
}

func (l *slogAdapter) Warn(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelWarn, msg, fields)
}

func (l *slogAdapter) Fatal(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelError, msg, fields)
	os.Exit(1)
}

func toAttrs(fields []Field) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	return attrs
}

var global Logger
var lvl slog.LevelVar

// Init initializes the global logger. Level defaults to info and output
// to stdout; both can be changed later with SetLevel*/SetLevelString.
func Init(opts ...Option) error {
	s := settings{writer: os.Stdout}
	for _, opt := range opts {
		opt(&s)
	}

	lvl.Set(slog.LevelInfo)
	if s.level != "" {
		if err := SetLevelString(s.level); err != nil {
			return err
		}
	}

	h := slog.NewTextHandler(s.writer, &slog.HandlerOptions{Level: &lvl, AddSource: false})
	global = &slogAdapter{base: slog.New(h)}
	return nil
}

// callSite reports where the log call happened as path/file.go:line,
// relative to the working directory when that can be resolved.
func callSite() string {
	_, file, line, ok := runtime.Caller(skipToCaller)
	if !ok {
		return "unknown:0"
	}
	if cwd, err := os.Getwd(); err == nil {
		if rel, relErr := filepath.Rel(cwd, file); relErr == nil {
			return fmt.Sprintf("%s:%d", rel, line)
		}
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// Get returns the global logger. It panics when Init has not been called;
// applications wire up logging before any package logs.
func Get() Logger {
	if global == nil {
		panic("logger not initialized. Call logger.Init first")
	}
	return global
}

// Named returns a child of the global logger grouped under name.
func Named(name string) Logger { return Get().Named(name) }

// Sync flushes buffered log entries. The slog text handler writes
// through, so there is nothing to do.
func Sync() error {
	return nil
}

// SetLevel changes the level of the global handler.
func SetLevel(level slog.Level) { lvl.Set(level) }

// SetLevelString parses a level name and applies it. It understands the
// same names WithLevel does.
func SetLevelString(level string) error {
	l, err := parseLevel(level)
	if err != nil {
		return err
	}
	SetLevel(l)
	return nil
}

func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unrecognized log level %q", name)
}
