//go:build !ios && !android && (darwin || linux) && (amd64 || arm64)

// Package platform describes the properties of the host that the handle
// layouts and library loader depend on.
package platform

import (
	"fmt"
	"runtime"
	"unsafe"
)

// WordSize is the size in bytes of one control-block word.
// Foreign handle buffers are sized in whole words.
const WordSize = unsafe.Sizeof(uintptr(0))

// Is64Bit indicates whether the platform is 64-bit.
// ptrbridge only supports 64-bit platforms due to purego limitations.
const Is64Bit = WordSize == 8

// LibraryExtension is the file extension for shared libraries on this platform.
var LibraryExtension string

// LibraryPrefix is the prefix for shared library names on this platform.
const LibraryPrefix = "lib"

// LibraryPathEnv names the dynamic loader's search path variable.
var LibraryPathEnv string

func init() {
	switch runtime.GOOS {
	case "darwin":
		LibraryExtension = ".dylib"
		LibraryPathEnv = "DYLD_LIBRARY_PATH"
	default:
		LibraryExtension = ".so"
		LibraryPathEnv = "LD_LIBRARY_PATH"
	}
}

// FormatLibraryName returns the platform-specific library filename.
// If version is 0, returns the unversioned library name.
//
// Examples:
//   - Linux: FormatLibraryName("ptrbridge", 1) -> "libptrbridge.so.1"
//   - macOS: FormatLibraryName("ptrbridge", 1) -> "libptrbridge.1.dylib"
func FormatLibraryName(name string, version int) string {
	if version <= 0 {
		return fmt.Sprintf("%s%s%s", LibraryPrefix, name, LibraryExtension)
	}
	if runtime.GOOS == "darwin" {
		return fmt.Sprintf("%s%s.%d%s", LibraryPrefix, name, version, LibraryExtension)
	}
	return fmt.Sprintf("%s%s%s.%d", LibraryPrefix, name, LibraryExtension, version)
}

// Words returns the byte size of a buffer of n control-block words.
func Words(n int) uintptr {
	return uintptr(n) * WordSize
}
