// Package hlog provides the component-scoped logger used across hansolo.
//
// Call sites use the same shape as the teacher's pkg/logger package
// (logger.New("component").Printf(...)), backed by zap's structured core
// instead of a bare stdlib logger so that fields attached via With survive
// into whatever sink the process is configured with.
package hlog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	baseMu   sync.RWMutex
	base     *zap.Logger
	initOnce sync.Once
)

func root() *zap.Logger {
	initOnce.Do(func() {
		level := zapcore.InfoLevel
		if os.Getenv("HANSOLO_DEBUG") != "" {
			level = zapcore.DebugLevel
		}
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "ts"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(os.Stderr), level)
		base = zap.New(core)
	})
	baseMu.RLock()
	defer baseMu.RUnlock()
	return base
}

// SetOutput redirects all future loggers to the given sink, for tests.
func SetOutput(w zapcore.WriteSyncer, level zapcore.Level) {
	initOnce.Do(func() {})
	baseMu.Lock()
	defer baseMu.Unlock()
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), w, level)
	base = zap.New(core)
}

// Logger is a named, component-scoped logger.
type Logger struct {
	z *zap.Logger
	s *zap.SugaredLogger
}

// New returns a logger tagged with the given component name, e.g.
// hlog.New("git"), hlog.New("tool:ship").
func New(component string) *Logger {
	z := root().With(zap.String("component", component))
	return &Logger{z: z, s: z.Sugar()}
}

// Print logs a message at info level.
func (l *Logger) Print(args ...any) {
	l.s.Info(args...)
}

// Printf logs a formatted message at info level.
func (l *Logger) Printf(format string, args ...any) {
	l.s.Infof(format, args...)
}

// Error logs a message at error level.
func (l *Logger) Error(args ...any) {
	l.s.Error(args...)
}

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...any) {
	l.s.Errorf(format, args...)
}

// With returns a derived logger carrying the given structured fields,
// e.g. lg.With(zap.String("branch", name)).
func (l *Logger) With(fields ...zap.Field) *Logger {
	z := l.z.With(fields...)
	return &Logger{z: z, s: z.Sugar()}
}

// Zap exposes the underlying structured logger for call sites that want
// zap.Field arguments directly instead of the Printf-style convenience API.
func (l *Logger) Zap() *zap.Logger {
	return l.z
}

// ExtractErrorMessage returns a human-readable message for err, or "" if
// err is nil. Mirrors the teacher's logger.ExtractErrorMessage helper used
// when folding adapter errors into check results.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
