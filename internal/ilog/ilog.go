// Package ilog provides this compiler's structured logging and the
// RecoverICE helper packages use to turn an api.ICE panic into an
// ordinary error. Grounded on wippyai-wasm-runtime's
// engine/logger.go and linker/logger.go, both of which wrap
// go.uber.org/zap behind the same sync.Once-guarded no-op default.
package ilog

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sourceror/compiler/api"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns this compiler's logger instance. It uses a no-op
// logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the logger. This must be called before any
// compiler operation that logs.
func SetLogger(l *zap.Logger) {
	logger = l
}

// RecoverICE runs fn and converts a panic carrying an api.ICE into a
// returned error. Any other panic value is not a condition this
// compiler considers recoverable and is re-raised, the same
// distinction internal/testing/require.CapturePanic draws between an
// expected assertion failure and a genuine bug in the test itself.
func RecoverICE(fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		ice, ok := r.(api.ICE)
		if !ok {
			panic(r)
		}
		err = fmt.Errorf("%w", ice)
	}()
	fn()
	return nil
}
