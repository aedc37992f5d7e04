//go:build !ios && !android && (darwin || linux) && (amd64 || arm64)

package ptrbridge_test

import (
	"fmt"

	"github.com/obinnaokechukwu/ptrbridge"
)

func ExampleNewCompact() {
	h := ptrbridge.NewCompact[uint32, ptrbridge.Uint32](42)
	defer h.Release()

	c := h.Clone()
	defer c.Release()

	fmt.Println(*c.Deref(), h.IsNull())
	// Output: 42 false
}

func ExampleShare() {
	h := ptrbridge.NewFull[float64, ptrbridge.Float64](1.5)
	defer h.Release()

	s := ptrbridge.Share(h)
	done := make(chan float64)
	go func() {
		c := s.Clone()
		defer c.Release()
		done <- *c.Deref()
	}()
	fmt.Println(<-done)
	// Output: 1.5
}

func ExampleNullCompact() {
	h := ptrbridge.NullCompact[int64, ptrbridge.Int64]()
	defer h.Release()

	_, ok := h.Get()
	fmt.Println(h, ok)
	// Output: nullptr false
}
