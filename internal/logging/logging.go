// Package logging provides the logger capability used across the store.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Logger is a thin wrapper over zap's sugared logger.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a logger at the given level, writing to file, or stderr when
// file is empty. Unknown level strings default to info.
func New(level, file string) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if file != "" {
		cfg.OutputPaths = []string{file}
		cfg.ErrorOutputPaths = []string{file}
	}

	z, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{s: z.Sugar()}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

// Observed returns a logger whose entries are captured for assertions.
func Observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{s: zap.New(core).Sugar()}, logs
}

// Debugw logs at debug level with key-value pairs.
func (l *Logger) Debugw(msg string, kv ...any) { l.s.Debugw(msg, kv...) }

// Infow logs at info level with key-value pairs.
func (l *Logger) Infow(msg string, kv ...any) { l.s.Infow(msg, kv...) }

// Warnw logs at warn level with key-value pairs.
func (l *Logger) Warnw(msg string, kv ...any) { l.s.Warnw(msg, kv...) }

// Errorw logs at error level with key-value pairs.
func (l *Logger) Errorw(msg string, kv ...any) { l.s.Errorw(msg, kv...) }

// Sync flushes buffered entries.
func (l *Logger) Sync() error { return l.s.Sync() }
