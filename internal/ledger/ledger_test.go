package ledger

import (
	"errors"
	"sync"
	"testing"
)

func TestRecordAndForget(t *testing.T) {
	l := New()
	l.Record(0x1000, "u32")

	if !l.Contains(0x1000) {
		t.Fatal("Contains should report recorded address")
	}
	if l.Count() != 1 {
		t.Errorf("Count = %d, want 1", l.Count())
	}

	seg, err := l.Forget(0x1000)
	if err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if seg != "u32" {
		t.Errorf("Forget returned segment %q, want u32", seg)
	}
	if l.Contains(0x1000) {
		t.Error("address should be gone after Forget")
	}
}

func TestForgetTwice(t *testing.T) {
	l := New()
	l.Record(0x2000, "f64")
	if _, err := l.Forget(0x2000); err != nil {
		t.Fatalf("first Forget: %v", err)
	}
	if _, err := l.Forget(0x2000); !errors.Is(err, ErrUnknownAllocation) {
		t.Errorf("second Forget error = %v, want ErrUnknownAllocation", err)
	}
}

func TestCountSegment(t *testing.T) {
	l := New()
	l.Record(0x10, "u8")
	l.Record(0x20, "u8")
	l.Record(0x30, "string")

	if got := l.CountSegment("u8"); got != 2 {
		t.Errorf("CountSegment(u8) = %d, want 2", got)
	}
	if got := l.CountSegment("bool"); got != 0 {
		t.Errorf("CountSegment(bool) = %d, want 0", got)
	}

	segs := l.Segments()
	if len(segs) != 2 || segs[0] != "string" || segs[1] != "u8" {
		t.Errorf("Segments = %v, want [string u8]", segs)
	}
}

func TestConcurrentAccess(t *testing.T) {
	const numGoroutines = 50
	const numOps = 100

	l := New()
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				addr := uintptr(id*numOps+j+1) * 64
				l.Record(addr, "i32")
				if _, err := l.Forget(addr); err != nil {
					t.Errorf("Forget(%#x): %v", addr, err)
				}
			}
		}(i)
	}

	wg.Wait()

	if l.Count() != 0 {
		t.Errorf("Count = %d after balanced ops, want 0", l.Count())
	}
}
