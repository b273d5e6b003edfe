// Package logging builds the process-wide structured logger.
//
// The shape (level, component tagging, field helpers) follows the
// teacher's deleted kernel/utils logger, which split native and
// syscall/js backends behind a build tag; since this server is a
// native binary only, that split collapses into a single zap-backed
// implementation.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors the handful of levels the source logger exposed.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case Debug:
		return zapcore.DebugLevel
	case Warn:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Config controls the root logger construction.
type Config struct {
	Level      Level
	Production bool // JSON output, sampling; false gives human-readable console output
}

// New builds the process-wide root logger.
func New(cfg Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Production {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(cfg.Level.zapLevel())
	return zcfg.Build()
}

// Component returns a child logger tagged with a subsystem name, the
// native equivalent of the teacher logger's "component" field.
func Component(base *zap.Logger, name string) *zap.Logger {
	return base.With(zap.String("component", name))
}

// Nop is used by tests and by packages exercised without a caller-supplied
// logger.
func Nop() *zap.Logger { return zap.NewNop() }
