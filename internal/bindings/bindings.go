//go:build !ios && !android && (darwin || linux) && (amd64 || arm64)

// Package bindings locates the foreign bridge library and resolves its
// trampolines into Go function variables using purego.
package bindings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	"github.com/obinnaokechukwu/ptrbridge/internal/platform"
)

// DefaultLibraryName is the base name of the bridge library (libptrbridge.so, libptrbridge.dylib).
const DefaultLibraryName = "ptrbridge"

// Environment overrides for the default library lookup.
const (
	EnvLibrary    = "PTRBRIDGE_LIBRARY"
	EnvLibraryDir = "PTRBRIDGE_LIBRARY_DIR"
)

// ErrLibraryNotFound is returned when the bridge library cannot be found.
var ErrLibraryNotFound = errors.New("ptrbridge: bridge library not found")

// ErrSymbolNotFound is returned when a trampoline is missing from the library.
var ErrSymbolNotFound = errors.New("ptrbridge: trampoline symbol not found")

// Library is an opened shared library.
type Library struct {
	handle uintptr
	path   string
}

var (
	defaultLib *Library
	loadOnce   sync.Once
	loadErr    error
)

// Load locates and opens the default bridge library.
// It is safe to call multiple times; subsequent calls return the first result.
func Load() (*Library, error) {
	loadOnce.Do(func() {
		path, err := FindLibrary(DefaultLibraryName, []int{1})
		if err != nil {
			loadErr = err
			return
		}
		defaultLib, loadErr = Open(path)
	})
	return defaultLib, loadErr
}

// IsLoaded returns true if the default library has been successfully loaded.
func IsLoaded() bool {
	return defaultLib != nil && loadErr == nil
}

// Open opens the library at path with RTLD_NOW | RTLD_GLOBAL.
// RTLD_GLOBAL keeps the trampolines visible to other bridge objects that reference them.
func Open(path string) (*Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLibraryNotFound, path, err)
	}
	Logger().Info("opened bridge library", zap.String("path", path))
	return &Library{handle: handle, path: path}, nil
}

// Path returns the path the library was opened from.
func (l *Library) Path() string {
	return l.path
}

// Has reports whether the library exports symbol.
func (l *Library) Has(symbol string) bool {
	_, err := purego.Dlsym(l.handle, symbol)
	return err == nil
}

// Bind stores the C function named symbol into fptr, which must point to a Go func variable.
// Unlike purego.RegisterLibFunc it reports a missing symbol instead of panicking.
func (l *Library) Bind(fptr any, symbol string) error {
	addr, err := purego.Dlsym(l.handle, symbol)
	if err != nil {
		Logger().Warn("missing trampoline", zap.String("symbol", symbol), zap.String("library", l.path))
		return fmt.Errorf("%w: %s in %s", ErrSymbolNotFound, symbol, l.path)
	}
	purego.RegisterFunc(fptr, addr)
	return nil
}

// Close unloads the library. Functions bound from it must not be called afterwards.
func (l *Library) Close() error {
	if l == nil || l.handle == 0 {
		return nil
	}
	if err := purego.Dlclose(l.handle); err != nil {
		return fmt.Errorf("ptrbridge: closing %s: %w", l.path, err)
	}
	l.handle = 0
	return nil
}

// FindLibrary searches for a library and returns its full path.
//
// The library is searched for in the following locations (in order):
//  1. PTRBRIDGE_LIBRARY environment variable (exact path)
//  2. PTRBRIDGE_LIBRARY_DIR environment variable
//  3. LD_LIBRARY_PATH / DYLD_LIBRARY_PATH
//  4. Standard library paths
//  5. Executable directory
func FindLibrary(name string, versions []int) (string, error) {
	if p := os.Getenv(EnvLibrary); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%w: %s=%s: %v", ErrLibraryNotFound, EnvLibrary, p, err)
		}
		return p, nil
	}

	if dir := os.Getenv(EnvLibraryDir); dir != "" {
		if p, ok := findIn([]string{dir}, name, versions); ok {
			return p, nil
		}
		return "", fmt.Errorf("%w: %s=%s does not contain %s", ErrLibraryNotFound, EnvLibraryDir, dir,
			platform.FormatLibraryName(name, 0))
	}

	if p, ok := findIn(LibrarySearchPaths(), name, versions); ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", ErrLibraryNotFound, platform.FormatLibraryName(name, 0))
}

// FindIn searches only the given directories.
func FindIn(dirs []string, name string, versions []int) (string, error) {
	if p, ok := findIn(dirs, name, versions); ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s in %v", ErrLibraryNotFound, platform.FormatLibraryName(name, 0), dirs)
}

func findIn(dirs []string, name string, versions []int) (string, bool) {
	for _, dir := range dirs {
		// Try versioned names first (more specific)
		for _, ver := range versions {
			p := filepath.Join(dir, platform.FormatLibraryName(name, ver))
			if _, err := os.Stat(p); err == nil {
				return p, true
			}
		}
		p := filepath.Join(dir, platform.FormatLibraryName(name, 0))
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// LibrarySearchPaths returns platform-specific library search paths.
func LibrarySearchPaths() []string {
	var paths []string

	if p := os.Getenv(platform.LibraryPathEnv); p != "" {
		paths = append(paths, filepath.SplitList(p)...)
	}

	paths = append(paths,
		"/usr/local/lib",
		"/usr/lib",
		"/lib",
	)

	switch runtime.GOOS {
	case "linux":
		if runtime.GOARCH == "amd64" {
			paths = append(paths, "/usr/lib/x86_64-linux-gnu")
		} else {
			paths = append(paths, "/usr/lib/aarch64-linux-gnu")
		}
	case "darwin":
		paths = append(paths, "/opt/homebrew/lib")
	}

	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Dir(exe))
	}

	return paths
}
