// Package logger provides the process-wide structured logger used across
// the gateway. It mirrors the package-level logging facade the rest of the
// codebase calls into (logger.Info, logger.Errorf, ...) so callers never
// need to thread a *zap.Logger through constructors.
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.RWMutex
	log *zap.SugaredLogger
)

func init() {
	log = mustBuild(false)
}

// Initialize (re)configures the global logger. Call once from main before
// any other package logs. debug enables development-mode encoding and
// debug-level output.
func Initialize(debug bool) {
	mu.Lock()
	defer mu.Unlock()
	log = mustBuild(debug)
}

func mustBuild(debug bool) *zap.SugaredLogger {
	level := zapcore.InfoLevel
	encoding := "json"
	if debug {
		level = zapcore.DebugLevel
		encoding = "console"
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      debug,
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fall back to a minimal logger rather than panic during init.
		l = zap.NewExample()
		_, _ = os.Stderr.WriteString("logger: falling back to example logger: " + err.Error() + "\n")
	}
	return l.Sugar()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() error {
	return get().Sync()
}

// Debug logs at debug level.
func Debug(args ...any) { get().Debug(args...) }

// Debugf logs a formatted message at debug level.
func Debugf(template string, args ...any) { get().Debugf(template, args...) }

// Info logs at info level.
func Info(args ...any) { get().Info(args...) }

// Infof logs a formatted message at info level.
func Infof(template string, args ...any) { get().Infof(template, args...) }

// Warn logs at warn level.
func Warn(args ...any) { get().Warn(args...) }

// Warnf logs a formatted message at warn level.
func Warnf(template string, args ...any) { get().Warnf(template, args...) }

// Error logs at error level.
func Error(args ...any) { get().Error(args...) }

// Errorf logs a formatted message at error level.
func Errorf(template string, args ...any) { get().Errorf(template, args...) }

// With returns a logger decorated with the given structured fields,
// for call sites that want to avoid repeating correlation ids.
func With(args ...any) *zap.SugaredLogger {
	return get().With(args...)
}
