//go:build !ios && !android && (darwin || linux) && (amd64 || arm64)

package ptrbridge

import (
	"fmt"
	"runtime"
	"unsafe"

	"go.uber.org/zap"
)

// FullHandle is a handle to a foreign object behind the full, atomically
// counted control block.
//
// A FullHandle is confined like a CompactHandle unless its descriptor is
// Concurrent, in which case Share grants a view that may cross goroutines.
// It must not be copied; use Clone.
//
// A non-null handle that becomes unreachable without Release gives up its
// reference when the garbage collector reclaims it. Release is still the
// expected way to end a handle's life; collection happens at an unspecified
// time, if ever.
type FullHandle[T any, D FullTarget[T]] struct {
	_       noCopy
	repr    [2]uintptr
	cleanup runtime.Cleanup
}

// fullCleanup is the state a collected FullHandle's cleanup needs. It holds a
// copy of the handle buffer, never the handle itself.
type fullCleanup[T any] struct {
	b    *Binding[T]
	repr [2]uintptr
}

func dropCollected[T any](c fullCleanup[T]) {
	Logger().Debug("released collected handle", zap.String("type", c.b.name))
	c.b.drop(unsafe.Pointer(&c.repr))
}

// arm makes collection of h drop its reference. The drop updates the count
// atomically, so it may run on the cleanup goroutine.
func (h *FullHandle[T, D]) arm() {
	if h.IsNull() {
		return
	}
	h.cleanup = runtime.AddCleanup(h, dropCollected[T], fullCleanup[T]{b: h.binding(), repr: h.repr})
}

func (h *FullHandle[T, D]) binding() *Binding[T] {
	var d D
	return d.FullBinding()
}

// NullFull returns a handle that owns nothing.
//
// Matches default-constructing the foreign handle.
func NullFull[T any, D FullTarget[T]]() *FullHandle[T, D] {
	h := new(FullHandle[T, D])
	h.binding().null(h.Addr())
	return h
}

// NewFull allocates a foreign object holding v and returns its only owner.
// Allocation failure aborts, as it does in the foreign runtime.
func NewFull[T any, D PlainFullTarget[T]](v T) *FullHandle[T, D] {
	h := new(FullHandle[T, D])
	h.binding().construct(h.Addr(), v)
	h.arm()
	return h
}

// ReceiveFull adopts a handle that a foreign function returns by value.
// fill must construct a handle at dst, as the foreign out-parameter does.
func ReceiveFull[T any, D FullTarget[T]](fill func(dst unsafe.Pointer)) *FullHandle[T, D] {
	h := new(FullHandle[T, D])
	fill(h.Addr())
	h.arm()
	return h
}

// Addr returns the address of the handle's buffer, for passing the handle by
// reference to foreign functions.
func (h *FullHandle[T, D]) Addr() unsafe.Pointer {
	return unsafe.Pointer(&h.repr)
}

// IsNull reports whether the handle owns no object.
func (h *FullHandle[T, D]) IsNull() bool {
	return h.binding().get(h.Addr()) == nil
}

// Get returns the object owned by the handle, or false if it is null.
// The pointer is valid until the handle is released or collected; keep the
// handle reachable while using it.
func (h *FullHandle[T, D]) Get() (*T, bool) {
	p := h.binding().get(h.Addr())
	return p, p != nil
}

// Deref returns the object owned by the handle. It panics with a *Defect
// naming the pointee type if the handle is null.
func (h *FullHandle[T, D]) Deref() *T {
	b := h.binding()
	p := b.get(h.Addr())
	if p == nil {
		fail(&Defect{Class: NullDeref, Kind: Full, TypeName: b.TypeName()})
	}
	return p
}

// Clone returns a new handle sharing ownership of the same object.
// The count is incremented atomically.
func (h *FullHandle[T, D]) Clone() *FullHandle[T, D] {
	c := new(FullHandle[T, D])
	h.binding().clone(h.Addr(), c.Addr())
	c.arm()
	return c
}

// Release gives up the handle's reference, freeing the object if it was the
// last one, and leaves the handle null. Releasing a null handle does nothing.
func (h *FullHandle[T, D]) Release() {
	if h == nil {
		return
	}
	h.cleanup.Stop()
	b := h.binding()
	b.drop(h.Addr())
	b.null(h.Addr())
}

// TypeName returns the pointee's display name.
func (h *FullHandle[T, D]) TypeName() string {
	return h.binding().TypeName()
}

// String formats the pointee, or "nullptr" for a null handle.
func (h *FullHandle[T, D]) String() string {
	p, ok := h.Get()
	if !ok {
		return "nullptr"
	}
	return fmt.Sprint(*p)
}

// SharedHandle is a read-only view of a FullHandle over a Concurrent pointee.
// Unlike the handle itself it may be passed to other goroutines, each of
// which takes and releases its own clones. The source handle must outlive
// every goroutine holding the view.
type SharedHandle[T any, D SharedTarget[T]] struct {
	h *FullHandle[T, D]
}

// Share grants cross-goroutine access to h. It compiles only for descriptors
// that are both full-kind and Concurrent.
func Share[T any, D SharedTarget[T]](h *FullHandle[T, D]) SharedHandle[T, D] {
	return SharedHandle[T, D]{h: h}
}

// Clone returns a new handle owned by the calling goroutine.
// Safe to call concurrently.
func (s SharedHandle[T, D]) Clone() *FullHandle[T, D] {
	return s.h.Clone()
}

// Get returns the shared object, or false if the handle is null.
// Safe to call concurrently.
func (s SharedHandle[T, D]) Get() (*T, bool) {
	return s.h.Get()
}

// IsNull reports whether the shared handle owns no object.
func (s SharedHandle[T, D]) IsNull() bool {
	return s.h.IsNull()
}
