package calibration

import (
	"sync"

	"go.uber.org/zap"
)

var (
	loggerMu  sync.RWMutex
	pkgLogger = zap.NewNop()
)

// SetLogger installs the structured logger used by this package. The
// default is a no-op logger; the service entry point installs the shared
// zap logger at startup. Passing nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l == nil {
		pkgLogger = zap.NewNop()
		return
	}
	pkgLogger = l.Named("calibration")
}

func logger() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return pkgLogger
}
