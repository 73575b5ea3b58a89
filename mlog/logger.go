// Package mlog provides the process-wide zap logger.
package mlog

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	// Level, see zapcore.ParseLevel. Default is "info".
	Level string `yaml:"level"`

	// File that the logger will be written into. Default is stderr.
	File string `yaml:"file"`

	// Production enables json output.
	Production bool `yaml:"production"`
}

var (
	stderr = zapcore.Lock(os.Stderr)
	lvl    = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	l      = newLogger(lvl, stderr, false)
	s      = l.Sugar()
)

func NewLogger(lc *LogConfig) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if len(lc.Level) > 0 {
		parsed, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		lvl.SetLevel(parsed)
	}

	out := stderr
	if len(lc.File) > 0 {
		f, _, err := zap.Open(lc.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = zapcore.Lock(f)
	}
	return newLogger(lvl, out, lc.Production), nil
}

func newLogger(lvl zapcore.LevelEnabler, out zapcore.WriteSyncer, production bool) *zap.Logger {
	if production {
		return zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), out, lvl))
	}
	return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), out, lvl))
}

// L returns the package logger.
func L() *zap.Logger {
	return l
}

// S returns the sugared package logger.
func S() *zap.SugaredLogger {
	return s
}

// SetLevel sets the level of the package logger.
func SetLevel(level zapcore.Level) {
	lvl.SetLevel(level)
}
