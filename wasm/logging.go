package wasm

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the package's logger instance, defaulting to a no-op
// logger until a host installs a real one via SetLogger. WithLogger does
// not change it; that option only sets one Parser's logger.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger installs l as the package-wide logger. Embedding hosts call
// this once at startup; Parser instances created with WithLogger override
// it for that instance only.
func SetLogger(l *zap.Logger) {
	loggerOnce.Do(func() {})
	logger = l
}
