package vm

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu        sync.RWMutex
	logger    = zap.NewNop()
	debugMode bool
)

// SetLogger installs the *zap.Logger the package logs through. Callers
// that never call it keep the no-op default, so library use doesn't
// force a logging dependency on its caller.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// SetDebug toggles the extra Debug-level fields logged on the loader
// and interpreter hot paths.
func SetDebug(enabled bool) { debugMode = enabled }

func log() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func debugf(msg string, fields ...zap.Field) {
	if debugMode {
		log().Debug(msg, fields...)
	}
}
