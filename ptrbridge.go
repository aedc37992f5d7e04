//go:build !ios && !android && (darwin || linux) && (amd64 || arm64)

// Package ptrbridge lets Go code hold, share, dereference and release objects
// that are owned and reference-counted by a foreign native runtime, without
// cgo.
//
// Two handle kinds mirror the foreign ones:
//
//   - CompactHandle: one control word, non-atomic count. Confined to one
//     goroutine at a time.
//   - FullHandle: two control words, atomic count. Shareable across
//     goroutines through Share when the pointee is declared Concurrent.
//
// A handle's buffer is opaque. Every operation is forwarded to a trampoline
// exported by the bridge library and resolved with purego at load time. The
// trampolines for a pointee type are selected by its descriptor, a zero-size
// type passed as the handle's second type parameter:
//
//	h := ptrbridge.NewCompact[uint32, ptrbridge.Uint32](42)
//	defer h.Release()
//	c := h.Clone()
//	defer c.Release()
//	fmt.Println(*c.Deref()) // 42
//
// Descriptors for primitive pointees are provided here. Descriptors for other
// types are emitted by the bridge code generator alongside their trampolines.
package ptrbridge

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/ptrbridge/internal/bindings"
	"github.com/obinnaokechukwu/ptrbridge/internal/symbol"
)

// DefaultPrefix is the trampoline symbol prefix of the stock bridge library.
const DefaultPrefix = symbol.DefaultPrefix

// Re-exported loader errors.
var (
	ErrLibraryNotFound = bindings.ErrLibraryNotFound
	ErrSymbolNotFound  = bindings.ErrSymbolNotFound
)

var (
	initOnce sync.Once
	initErr  error
)

// Init loads the default bridge library and links every registered binding
// against it. It is called automatically by the first handle operation on an
// unlinked binding, but can be called explicitly to check for errors.
// It is safe to call multiple times. If a resolver has already been installed
// with Link or InitWith, Init does nothing.
func Init() error {
	if linked() {
		return nil
	}
	initOnce.Do(func() {
		lib, err := bindings.Load()
		if err != nil {
			initErr = err
			return
		}
		initErr = Link(lib, DefaultPrefix)
	})
	return initErr
}

// IsLoaded returns true if a resolver has been linked.
func IsLoaded() bool {
	return linked()
}

// Config selects the bridge library explicitly.
type Config struct {
	// Library is the path of the bridge library. If empty it is searched for
	// in SearchPaths, or in the default locations when SearchPaths is empty.
	Library string

	// SearchPaths are directories to look for the library in.
	SearchPaths []string

	// Prefix is the trampoline symbol prefix. Defaults to DefaultPrefix.
	Prefix string

	// Logger receives load and link events. Defaults to the current logger.
	Logger *zap.Logger
}

// InitWith opens the library described by cfg and links every registered
// binding against it.
func InitWith(cfg Config) error {
	if cfg.Logger != nil {
		SetLogger(cfg.Logger)
	}
	path := cfg.Library
	if path == "" {
		var err error
		if len(cfg.SearchPaths) > 0 {
			path, err = bindings.FindIn(cfg.SearchPaths, bindings.DefaultLibraryName, []int{1})
		} else {
			path, err = bindings.FindLibrary(bindings.DefaultLibraryName, []int{1})
		}
		if err != nil {
			return err
		}
	}
	lib, err := bindings.Open(path)
	if err != nil {
		return err
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if err := Link(lib, prefix); err != nil {
		return errors.Join(errors.New("ptrbridge: linking "+lib.Path()), err)
	}
	return nil
}
