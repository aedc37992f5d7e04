//go:build !ios && !android && (darwin || linux) && (amd64 || arm64)

package ptrbridge

import (
	"fmt"
	"runtime"
	"unsafe"

	"go.uber.org/zap"
)

// CompactHandle is a handle to a foreign object behind the compact,
// non-atomically counted control block.
//
// The handle must not be used from more than one goroutine at a time and
// must not be handed to another goroutine while any clone of it is in use
// elsewhere. It must not be copied; use Clone.
//
// A non-null handle must be released. The count is not atomic, so collection
// cannot drop the reference from the cleanup goroutine; a handle collected
// without Release is reported through Logger as a leak instead.
type CompactHandle[T any, D CompactTarget[T]] struct {
	_       noCopy
	repr    [1]uintptr
	cleanup runtime.Cleanup
}

func reportLeak(typeName string) {
	Logger().Warn("compact handle collected without Release, foreign object leaked",
		zap.String("type", typeName))
}

// arm makes collection of h report a leak.
func (h *CompactHandle[T, D]) arm() {
	if h.IsNull() {
		return
	}
	h.cleanup = runtime.AddCleanup(h, reportLeak, h.binding().name)
}

func (h *CompactHandle[T, D]) binding() *Binding[T] {
	var d D
	return d.CompactBinding()
}

// NullCompact returns a handle that owns nothing.
//
// Matches default-constructing the foreign handle.
func NullCompact[T any, D CompactTarget[T]]() *CompactHandle[T, D] {
	h := new(CompactHandle[T, D])
	h.binding().null(h.Addr())
	return h
}

// NewCompact allocates a foreign object holding v and returns its only owner.
// Allocation failure aborts, as it does in the foreign runtime.
func NewCompact[T any, D PlainCompactTarget[T]](v T) *CompactHandle[T, D] {
	h := new(CompactHandle[T, D])
	h.binding().construct(h.Addr(), v)
	h.arm()
	return h
}

// ReceiveCompact adopts a handle that a foreign function returns by value.
// fill must construct a handle at dst, as the foreign out-parameter does.
func ReceiveCompact[T any, D CompactTarget[T]](fill func(dst unsafe.Pointer)) *CompactHandle[T, D] {
	h := new(CompactHandle[T, D])
	fill(h.Addr())
	h.arm()
	return h
}

// Addr returns the address of the handle's buffer, for passing the handle by
// reference to foreign functions.
func (h *CompactHandle[T, D]) Addr() unsafe.Pointer {
	return unsafe.Pointer(&h.repr)
}

// IsNull reports whether the handle owns no object.
func (h *CompactHandle[T, D]) IsNull() bool {
	return h.binding().get(h.Addr()) == nil
}

// Get returns the object owned by the handle, or false if it is null.
// The pointer is valid until the handle is released.
func (h *CompactHandle[T, D]) Get() (*T, bool) {
	p := h.binding().get(h.Addr())
	return p, p != nil
}

// Deref returns the object owned by the handle. It panics with a *Defect
// naming the pointee type if the handle is null.
func (h *CompactHandle[T, D]) Deref() *T {
	b := h.binding()
	p := b.get(h.Addr())
	if p == nil {
		fail(&Defect{Class: NullDeref, Kind: Compact, TypeName: b.TypeName()})
	}
	return p
}

// Clone returns a new handle sharing ownership of the same object.
func (h *CompactHandle[T, D]) Clone() *CompactHandle[T, D] {
	c := new(CompactHandle[T, D])
	h.binding().clone(h.Addr(), c.Addr())
	c.arm()
	return c
}

// Release gives up the handle's reference, freeing the object if it was the
// last one, and leaves the handle null. Releasing a null handle does nothing.
func (h *CompactHandle[T, D]) Release() {
	if h == nil {
		return
	}
	h.cleanup.Stop()
	b := h.binding()
	b.drop(h.Addr())
	b.null(h.Addr())
}

// TypeName returns the pointee's display name.
func (h *CompactHandle[T, D]) TypeName() string {
	return h.binding().TypeName()
}

// String formats the pointee, or "nullptr" for a null handle.
func (h *CompactHandle[T, D]) String() string {
	p, ok := h.Get()
	if !ok {
		return "nullptr"
	}
	return fmt.Sprint(*p)
}
