package guest

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the logger boundary calls report through. Silent
// (no-op) unless SetLogger installed one.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger installs l as the package logger. Call it before binding
// any instances; calls already in flight keep the logger they saw.
func SetLogger(l *zap.Logger) {
	logger = l
}
