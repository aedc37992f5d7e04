//go:build !ios && !android && (darwin || linux) && (amd64 || arm64)

package hostrt

import (
	"errors"
	"sync"
	"testing"
	"unsafe"

	"github.com/obinnaokechukwu/ptrbridge/internal/symbol"
)

type trampolines struct {
	null   func(dst unsafe.Pointer)
	uninit func(dst unsafe.Pointer) unsafe.Pointer
	clone  func(src, dst unsafe.Pointer)
	get    func(src unsafe.Pointer) unsafe.Pointer
	drop   func(dst unsafe.Pointer)
}

func bindAll(t *testing.T, rt *Runtime, kind, segment string) trampolines {
	t.Helper()
	var tr trampolines
	targets := map[symbol.Op]any{
		symbol.OpNull:   &tr.null,
		symbol.OpUninit: &tr.uninit,
		symbol.OpClone:  &tr.clone,
		symbol.OpGet:    &tr.get,
		symbol.OpDrop:   &tr.drop,
	}
	for op, fptr := range targets {
		name := symbol.Name(rt.Prefix(), kind, segment, op)
		if err := rt.Bind(fptr, name); err != nil {
			t.Fatalf("Bind(%s): %v", name, err)
		}
	}
	return tr
}

func TestCompactLifecycle(t *testing.T) {
	rt := New(symbol.DefaultPrefix)
	tr := bindAll(t, rt, symbol.CompactKind, "u32")

	var a, b [1]uintptr
	tr.null(unsafe.Pointer(&a))
	if tr.get(unsafe.Pointer(&a)) != nil {
		t.Fatal("null handle should read as nil")
	}

	*(*uint32)(tr.uninit(unsafe.Pointer(&a))) = 42
	if rt.Live() != 1 {
		t.Fatalf("Live = %d, want 1", rt.Live())
	}

	tr.clone(unsafe.Pointer(&a), unsafe.Pointer(&b))
	if got := rt.UseCount(symbol.CompactKind, unsafe.Pointer(&b)); got != 2 {
		t.Errorf("UseCount = %d, want 2", got)
	}
	if tr.get(unsafe.Pointer(&a)) != tr.get(unsafe.Pointer(&b)) {
		t.Error("clone should alias the same object")
	}

	tr.drop(unsafe.Pointer(&a))
	if got := *(*uint32)(tr.get(unsafe.Pointer(&b))); got != 42 {
		t.Errorf("value after dropping original = %d, want 42", got)
	}

	tr.drop(unsafe.Pointer(&b))
	if rt.Live() != 0 {
		t.Errorf("Live = %d after last drop, want 0", rt.Live())
	}
	if err := rt.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestFullLifecycle(t *testing.T) {
	rt := New(symbol.DefaultPrefix)
	tr := bindAll(t, rt, symbol.FullKind, "f64")

	var a, b [2]uintptr
	*(*float64)(tr.uninit(unsafe.Pointer(&a))) = 2.5
	tr.clone(unsafe.Pointer(&a), unsafe.Pointer(&b))

	if got := rt.UseCount(symbol.FullKind, unsafe.Pointer(&a)); got != 2 {
		t.Errorf("UseCount = %d, want 2", got)
	}

	tr.drop(unsafe.Pointer(&b))
	tr.drop(unsafe.Pointer(&a))
	if rt.LiveSegment("f64") != 0 {
		t.Errorf("LiveSegment(f64) = %d, want 0", rt.LiveSegment("f64"))
	}
}

func TestDropNullIsNoop(t *testing.T) {
	rt := New(symbol.DefaultPrefix)
	for _, kind := range []string{symbol.CompactKind, symbol.FullKind} {
		tr := bindAll(t, rt, kind, "i8")
		var buf [2]uintptr
		tr.null(unsafe.Pointer(&buf))
		tr.drop(unsafe.Pointer(&buf))
	}
	if rt.Live() != 0 {
		t.Errorf("Live = %d, want 0", rt.Live())
	}
}

func TestConcurrentFullClone(t *testing.T) {
	const workers = 8
	const rounds = 500

	rt := New(symbol.DefaultPrefix)
	tr := bindAll(t, rt, symbol.FullKind, "u64")

	var root [2]uintptr
	*(*uint64)(tr.uninit(unsafe.Pointer(&root))) = 7

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				var c [2]uintptr
				tr.clone(unsafe.Pointer(&root), unsafe.Pointer(&c))
				tr.drop(unsafe.Pointer(&c))
			}
		}()
	}
	wg.Wait()

	if got := rt.UseCount(symbol.FullKind, unsafe.Pointer(&root)); got != 1 {
		t.Errorf("UseCount = %d after balanced clones, want 1", got)
	}
	tr.drop(unsafe.Pointer(&root))
	if rt.Live() != 0 {
		t.Errorf("Live = %d, want 0", rt.Live())
	}
}

func TestEmplace(t *testing.T) {
	rt := New(symbol.DefaultPrefix)
	tr := bindAll(t, rt, symbol.CompactKind, "string")

	var buf [1]uintptr
	if err := rt.Emplace(symbol.CompactKind, "string", unsafe.Pointer(&buf), []byte("hello")); err != nil {
		t.Fatalf("Emplace: %v", err)
	}
	got := unsafe.Slice((*byte)(tr.get(unsafe.Pointer(&buf))), 5)
	if string(got) != "hello" {
		t.Errorf("payload = %q, want hello", got)
	}
	tr.drop(unsafe.Pointer(&buf))

	big := make([]byte, ValueCapacity+1)
	if err := rt.Emplace(symbol.CompactKind, "string", unsafe.Pointer(&buf), big); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Emplace oversize error = %v, want ErrTooLarge", err)
	}
}

func TestBindErrors(t *testing.T) {
	rt := New(symbol.DefaultPrefix)

	var get func(src unsafe.Pointer) unsafe.Pointer
	if err := rt.Bind(&get, "other$lw_shared_ptr$u8$get"); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("foreign prefix error = %v, want ErrUnknownSymbol", err)
	}

	var wrong func(unsafe.Pointer)
	name := symbol.Name(symbol.DefaultPrefix, symbol.CompactKind, "u8", symbol.OpGet)
	if err := rt.Bind(&wrong, name); !errors.Is(err, ErrSignature) {
		t.Errorf("wrong signature error = %v, want ErrSignature", err)
	}
}

func TestCloseRefusesLiveAllocations(t *testing.T) {
	rt := New(symbol.DefaultPrefix)
	tr := bindAll(t, rt, symbol.CompactKind, "bool")

	var buf [1]uintptr
	tr.uninit(unsafe.Pointer(&buf))
	if err := rt.Close(); !errors.Is(err, ErrLive) {
		t.Errorf("Close error = %v, want ErrLive", err)
	}
	tr.drop(unsafe.Pointer(&buf))
	if err := rt.Close(); err != nil {
		t.Errorf("Close after drop: %v", err)
	}
}

func TestDoubleReleasePanics(t *testing.T) {
	rt := New(symbol.DefaultPrefix)
	tr := bindAll(t, rt, symbol.CompactKind, "i16")

	var a, stale [1]uintptr
	tr.uninit(unsafe.Pointer(&a))
	stale = a // raw copy: two views, one reference
	tr.drop(unsafe.Pointer(&a))

	defer func() {
		if recover() == nil {
			t.Error("dropping a raw copy after the object was freed should panic")
		}
	}()
	tr.drop(unsafe.Pointer(&stale))
}
