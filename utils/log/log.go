// Package log provides a global, swappable structured logger used by
// packages which do not hold a direct reference to a *zap.SugaredLogger
// (e.g. because they are initialized before dependency injection wires one
// in). Packages that already have a logger injected should prefer it over
// this package.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _log = zap.NewNop().Sugar()

// SetGlobal replaces the global logger. Should be called once during
// process start up before any other goroutines begin logging.
func SetGlobal(l *zap.SugaredLogger) {
	_log = l
}

// Config controls the global logger's encoding and level. Disabled
// suppresses all logging with a no-op logger.
type Config struct {
	Disabled bool   `yaml:"disabled"`
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// ConfigureLogger builds a *zap.SugaredLogger from config, installs it as
// the global logger, and returns it so the caller can register it for
// flushing (Sync) on shutdown.
func ConfigureLogger(config Config) *zap.SugaredLogger {
	if config.Disabled {
		l := zap.NewNop().Sugar()
		SetGlobal(l)
		return l
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(config.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	encoding := config.Encoding
	if encoding == "" {
		encoding = "console"
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = encoding
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		l := zap.NewNop().Sugar()
		SetGlobal(l)
		return l
	}

	l := logger.Sugar()
	SetGlobal(l)
	return l
}

// Debug logs at debug level.
func Debug(args ...interface{}) { _log.Debug(args...) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...interface{}) { _log.Debugf(format, args...) }

// Info logs at info level.
func Info(args ...interface{}) { _log.Info(args...) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...interface{}) { _log.Infof(format, args...) }

// Warn logs at warn level.
func Warn(args ...interface{}) { _log.Warn(args...) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...interface{}) { _log.Warnf(format, args...) }

// Error logs at error level.
func Error(args ...interface{}) { _log.Error(args...) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...interface{}) { _log.Errorf(format, args...) }

// Fatal logs at fatal level and exits the process.
func Fatal(args ...interface{}) { _log.Fatal(args...) }

// Fatalf logs a formatted message at fatal level and exits the process.
func Fatalf(format string, args ...interface{}) { _log.Fatalf(format, args...) }
