package util

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	loggerMu sync.RWMutex
	logger   = zap.NewNop()
)

// Logging is a clumsy switch that affects what Logf does.
//
// If Logging is true, then Logf logs at info level via Logger().
var Logging = false

// Logf is a silly utility function that logs a formatted message if
// Logging is true.
func Logf(format string, args ...interface{}) {
	if !Logging {
		return
	}
	Logger().Sugar().Infof(format, args...)
}

// Logger returns the process-wide logger, which is a no-op logger
// until SetLogger is called.
func Logger() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// SetLogger replaces the process-wide logger.  A nil l restores the
// no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// NewLogger builds a logger.
//
// The production configuration (JSON to stderr) is the default.
// With development, output is the console encoder.  With verbose,
// the level is debug.
func NewLogger(verbose, development bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if development {
		config = zap.NewDevelopmentConfig()
	}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return config.Build()
}
