//go:build !ios && !android && (darwin || linux) && (amd64 || arm64)

// Package hostrt is an in-process implementation of the handle trampoline ABI.
//
// It serves the same five entry points per (kind, segment) pair that a
// compiled bridge library exports, so handle code can be exercised without
// one. Control blocks are carved from anonymous mmap regions outside the Go
// heap, in fixed slots:
//
//	[0:8)  reference count
//	[8:64) value storage
//
// A compact handle is one word pointing at its slot; the count is updated
// non-atomically. A full handle is two words, the value address followed by
// the slot address, and its count is updated atomically.
package hostrt

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/obinnaokechukwu/ptrbridge/internal/ledger"
	"github.com/obinnaokechukwu/ptrbridge/internal/symbol"
)

const (
	slotSize  = 64
	countSize = 8
	chunkSize = 1 << 16

	// ValueCapacity is the largest pointee, in bytes, a slot can hold.
	ValueCapacity = slotSize - countSize
)

var (
	// ErrUnknownSymbol is returned by Bind for names outside the trampoline convention.
	ErrUnknownSymbol = errors.New("ptrbridge: hostrt does not export symbol")

	// ErrSignature is returned by Bind when the destination has the wrong func type.
	ErrSignature = errors.New("ptrbridge: hostrt trampoline signature mismatch")

	// ErrLive is returned by Close while allocations are still referenced.
	ErrLive = errors.New("ptrbridge: hostrt allocations still live")

	// ErrTooLarge is returned by Emplace for payloads that do not fit a slot.
	ErrTooLarge = errors.New("ptrbridge: payload exceeds slot capacity")
)

// Runtime is one instance of the reference runtime.
//
// Allocation and release are thread-safe. Clone and drop on compact handles
// follow the foreign model and must not race on the same object.
type Runtime struct {
	prefix string
	live   *ledger.Ledger

	mu     sync.Mutex
	chunks [][]byte
	free   []unsafe.Pointer
}

// New returns a runtime that answers to trampolines named with prefix.
func New(prefix string) *Runtime {
	return &Runtime{
		prefix: prefix,
		live:   ledger.New(),
	}
}

// Prefix returns the symbol prefix the runtime answers to.
func (rt *Runtime) Prefix() string {
	return rt.prefix
}

// Live returns the number of allocations that still have references.
func (rt *Runtime) Live() int {
	return rt.live.Count()
}

// LiveSegment returns the number of live allocations for one pointee segment.
func (rt *Runtime) LiveSegment(segment string) int {
	return rt.live.CountSegment(segment)
}

// ValueCapacity returns the value storage every uninit hands out, in bytes.
func (rt *Runtime) ValueCapacity() uintptr {
	return ValueCapacity
}

// Bind stores the trampoline named name into fptr.
func (rt *Runtime) Bind(fptr any, name string) error {
	p, err := symbol.Parse(rt.prefix, name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownSymbol, err)
	}
	seg := p.Segment

	if p.Kind == symbol.CompactKind {
		switch p.Op {
		case symbol.OpNull:
			return assign(fptr, rt.compactNull)
		case symbol.OpUninit:
			return assign(fptr, func(dst unsafe.Pointer) unsafe.Pointer { return rt.compactUninit(seg, dst) })
		case symbol.OpClone:
			return assign(fptr, rt.compactClone)
		case symbol.OpGet:
			return assign(fptr, rt.compactGet)
		case symbol.OpDrop:
			return assign(fptr, rt.compactDrop)
		}
	} else {
		switch p.Op {
		case symbol.OpNull:
			return assign(fptr, rt.fullNull)
		case symbol.OpUninit:
			return assign(fptr, func(dst unsafe.Pointer) unsafe.Pointer { return rt.fullUninit(seg, dst) })
		case symbol.OpClone:
			return assign(fptr, rt.fullClone)
		case symbol.OpGet:
			return assign(fptr, rt.fullGet)
		case symbol.OpDrop:
			return assign(fptr, rt.fullDrop)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownSymbol, name)
}

func assign[F any](fptr any, fn F) error {
	p, ok := fptr.(*F)
	if !ok {
		return fmt.Errorf("%w: %T cannot hold %T", ErrSignature, fptr, fn)
	}
	*p = fn
	return nil
}

// Emplace constructs a handle of the given kind in dst whose pointee bytes are
// payload, the way a foreign factory returns a handle by value. It is the only
// way to obtain owning handles for opaque pointees.
func (rt *Runtime) Emplace(kind, segment string, dst unsafe.Pointer, payload []byte) error {
	if len(payload) > ValueCapacity {
		return fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(payload), ValueCapacity)
	}
	var value unsafe.Pointer
	switch kind {
	case symbol.CompactKind:
		value = rt.compactUninit(segment, dst)
	case symbol.FullKind:
		value = rt.fullUninit(segment, dst)
	default:
		return fmt.Errorf("%w: handle kind %q", ErrUnknownSymbol, kind)
	}
	copy(unsafe.Slice((*byte)(value), ValueCapacity), payload)
	return nil
}

// UseCount returns the reference count of the object the handle in src
// refers to, or 0 for a null handle.
func (rt *Runtime) UseCount(kind string, src unsafe.Pointer) int64 {
	if kind == symbol.FullKind {
		cb := (*[2]unsafe.Pointer)(src)[1]
		if cb == nil {
			return 0
		}
		return atomic.LoadInt64((*int64)(cb))
	}
	slot := *(*unsafe.Pointer)(src)
	if slot == nil {
		return 0
	}
	return *(*int64)(slot)
}

// Close unmaps the runtime's memory. It refuses while allocations are live,
// since handles would otherwise point at unmapped pages.
func (rt *Runtime) Close() error {
	if n := rt.live.Count(); n > 0 {
		return fmt.Errorf("%w: %d in %v", ErrLive, n, rt.live.Segments())
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	var errs []error
	for _, mem := range rt.chunks {
		if err := unix.Munmap(mem); err != nil {
			errs = append(errs, err)
		}
	}
	rt.chunks = nil
	rt.free = nil
	return errors.Join(errs...)
}

// alloc hands out a zeroed slot. mmap failure aborts, matching an
// infallible foreign allocator.
func (rt *Runtime) alloc(segment string) unsafe.Pointer {
	rt.mu.Lock()
	if len(rt.free) == 0 {
		mem, err := unix.Mmap(-1, 0, chunkSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
		if err != nil {
			rt.mu.Unlock()
			panic(fmt.Sprintf("ptrbridge: hostrt out of memory: %v", err))
		}
		rt.chunks = append(rt.chunks, mem)
		for off := chunkSize - slotSize; off >= 0; off -= slotSize {
			rt.free = append(rt.free, unsafe.Pointer(&mem[off]))
		}
	}
	slot := rt.free[len(rt.free)-1]
	rt.free = rt.free[:len(rt.free)-1]
	rt.mu.Unlock()

	clear(unsafe.Slice((*byte)(slot), slotSize))
	rt.live.Record(uintptr(slot), segment)
	return slot
}

func (rt *Runtime) release(slot unsafe.Pointer) {
	if _, err := rt.live.Forget(uintptr(slot)); err != nil {
		panic(err)
	}
	rt.mu.Lock()
	rt.free = append(rt.free, slot)
	rt.mu.Unlock()
}

func (rt *Runtime) compactNull(dst unsafe.Pointer) {
	*(*unsafe.Pointer)(dst) = nil
}

func (rt *Runtime) compactUninit(segment string, dst unsafe.Pointer) unsafe.Pointer {
	slot := rt.alloc(segment)
	*(*int64)(slot) = 1
	*(*unsafe.Pointer)(dst) = slot
	return unsafe.Add(slot, countSize)
}

func (rt *Runtime) compactClone(src, dst unsafe.Pointer) {
	slot := *(*unsafe.Pointer)(src)
	if slot != nil {
		*(*int64)(slot)++
	}
	*(*unsafe.Pointer)(dst) = slot
}

func (rt *Runtime) compactGet(src unsafe.Pointer) unsafe.Pointer {
	slot := *(*unsafe.Pointer)(src)
	if slot == nil {
		return nil
	}
	return unsafe.Add(slot, countSize)
}

func (rt *Runtime) compactDrop(dst unsafe.Pointer) {
	slot := *(*unsafe.Pointer)(dst)
	if slot == nil {
		return
	}
	count := (*int64)(slot)
	*count--
	switch {
	case *count == 0:
		rt.release(slot)
	case *count < 0:
		panic(fmt.Sprintf("ptrbridge: hostrt reference count underflow at %p", slot))
	}
}

func (rt *Runtime) fullNull(dst unsafe.Pointer) {
	w := (*[2]unsafe.Pointer)(dst)
	w[0], w[1] = nil, nil
}

func (rt *Runtime) fullUninit(segment string, dst unsafe.Pointer) unsafe.Pointer {
	slot := rt.alloc(segment)
	atomic.StoreInt64((*int64)(slot), 1)
	w := (*[2]unsafe.Pointer)(dst)
	w[0], w[1] = unsafe.Add(slot, countSize), slot
	return w[0]
}

func (rt *Runtime) fullClone(src, dst unsafe.Pointer) {
	s := (*[2]unsafe.Pointer)(src)
	if s[1] != nil {
		atomic.AddInt64((*int64)(s[1]), 1)
	}
	d := (*[2]unsafe.Pointer)(dst)
	d[0], d[1] = s[0], s[1]
}

func (rt *Runtime) fullGet(src unsafe.Pointer) unsafe.Pointer {
	return (*[2]unsafe.Pointer)(src)[0]
}

func (rt *Runtime) fullDrop(dst unsafe.Pointer) {
	cb := (*[2]unsafe.Pointer)(dst)[1]
	if cb == nil {
		return
	}
	switch n := atomic.AddInt64((*int64)(cb), -1); {
	case n == 0:
		rt.release(cb)
	case n < 0:
		panic(fmt.Sprintf("ptrbridge: hostrt reference count underflow at %p", cb))
	}
}
