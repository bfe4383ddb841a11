package preview1

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasi-adapter/errors"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the dispatch layer's logger.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger replaces the package logger. Call it before creating adapters.
func SetLogger(l *zap.Logger) {
	loggerOnce.Do(func() {})
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// fatal logs and returns an invariant violation. Callers panic with the
// result, which the engine turns into a trap of the guest call.
func fatal(format string, args ...any) *errors.Error {
	err := errors.Fatal(format, args...)
	Logger().Error("adapter invariant violated", zap.Error(err))
	return err
}
