//go:build !ios && !android && (darwin || linux) && (amd64 || arm64)

package ptrbridge

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/ptrbridge/internal/bindings"
)

var (
	logger atomic.Pointer[zap.Logger]
	nop    = zap.NewNop()
)

// Logger returns the package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return nop
}

// SetLogger configures the logger used for library loading, linking, defect
// reports and collected handles. It also applies to the library loader.
// Handle cleanups run on their own goroutine, so the logger may be replaced
// at any time.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = nop
	}
	logger.Store(l)
	bindings.SetLogger(l)
}
