//go:build !ios && !android && (darwin || linux) && (amd64 || arm64)

package bindings

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unsafe"

	"github.com/obinnaokechukwu/ptrbridge/internal/platform"
	"github.com/obinnaokechukwu/ptrbridge/internal/symbol"
)

func TestLibrarySearchPaths(t *testing.T) {
	paths := LibrarySearchPaths()
	if len(paths) == 0 {
		t.Error("LibrarySearchPaths should return at least one path")
	}
}

func TestLibrarySearchPathsHonorsLoaderEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(platform.LibraryPathEnv, dir)

	paths := LibrarySearchPaths()
	if paths[0] != dir {
		t.Errorf("first search path = %q, want %q", paths[0], dir)
	}
}

func TestFindLibrary_RespectsLibraryDir(t *testing.T) {
	dir := t.TempDir()
	fake := filepath.Join(dir, platform.FormatLibraryName(DefaultLibraryName, 1))
	if err := os.WriteFile(fake, []byte("not a real library"), 0o644); err != nil {
		t.Fatalf("write fake library: %v", err)
	}

	t.Setenv(EnvLibrary, "")
	t.Setenv(EnvLibraryDir, dir)

	got, err := FindLibrary(DefaultLibraryName, []int{1})
	if err != nil {
		t.Fatalf("FindLibrary error: %v", err)
	}
	if got != fake {
		t.Fatalf("expected %q, got %q", fake, got)
	}
}

func TestFindLibrary_LibraryDirNotFound(t *testing.T) {
	t.Setenv(EnvLibrary, "")
	t.Setenv(EnvLibraryDir, t.TempDir())

	_, err := FindLibrary(DefaultLibraryName, []int{1})
	if !errors.Is(err, ErrLibraryNotFound) {
		t.Fatalf("expected ErrLibraryNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), EnvLibraryDir) {
		t.Errorf("error should mention %s: %v", EnvLibraryDir, err)
	}
}

func TestFindLibrary_ExplicitPath(t *testing.T) {
	fake := filepath.Join(t.TempDir(), "custom.so")
	if err := os.WriteFile(fake, nil, 0o644); err != nil {
		t.Fatalf("write fake library: %v", err)
	}
	t.Setenv(EnvLibrary, fake)

	got, err := FindLibrary(DefaultLibraryName, nil)
	if err != nil {
		t.Fatalf("FindLibrary error: %v", err)
	}
	if got != fake {
		t.Errorf("expected %q, got %q", fake, got)
	}
}

func TestFindLibrary_ExplicitPathMissing(t *testing.T) {
	t.Setenv(EnvLibrary, filepath.Join(t.TempDir(), "missing.so"))

	if _, err := FindLibrary(DefaultLibraryName, nil); !errors.Is(err, ErrLibraryNotFound) {
		t.Errorf("expected ErrLibraryNotFound, got %v", err)
	}
}

func TestFindIn(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, platform.FormatLibraryName("bridgetest", 0))
	if err := os.WriteFile(lib, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := FindIn([]string{t.TempDir(), dir}, "bridgetest", []int{3})
	if err != nil {
		t.Fatalf("FindIn: %v", err)
	}
	if got != lib {
		t.Errorf("FindIn = %q, want %q", got, lib)
	}
}

func TestOpenRejectsNonLibrary(t *testing.T) {
	fake := filepath.Join(t.TempDir(), platform.FormatLibraryName("bogus", 0))
	if err := os.WriteFile(fake, []byte("not a real library"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(fake); !errors.Is(err, ErrLibraryNotFound) {
		t.Errorf("Open error = %v, want ErrLibraryNotFound", err)
	}
}

// Integration test - only runs if the bridge library is installed.
func TestLoadBridgeLibrary(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping bridge library load test in short mode")
	}

	lib, err := Load()
	if err != nil {
		t.Skipf("bridge library not available: %v", err)
	}
	if !IsLoaded() {
		t.Error("IsLoaded should be true after successful Load")
	}

	name := symbol.Name(symbol.DefaultPrefix, symbol.CompactKind, "u32", symbol.OpGet)
	if !lib.Has(name) {
		t.Skipf("library at %s does not export %s", lib.Path(), name)
	}

	var get func(src unsafe.Pointer) unsafe.Pointer
	if err := lib.Bind(&get, name); err != nil {
		t.Fatalf("Bind(%s): %v", name, err)
	}
	if get == nil {
		t.Fatal("Bind left the function variable nil")
	}

	err = lib.Bind(&get, "ptrbridge_definitely_missing_symbol")
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("Bind of missing symbol error = %v, want ErrSymbolNotFound", err)
	}
}
