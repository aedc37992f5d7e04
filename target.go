//go:build !ios && !android && (darwin || linux) && (amd64 || arm64)

package ptrbridge

// CompactTarget is implemented by descriptors of pointee types usable inside a
// CompactHandle. A descriptor is a zero-size type whose methods return its
// static binding.
//
// A bound D CompactTarget[T] is needed when manipulating CompactHandle in
// generic code:
//
//	func describe[T any, D ptrbridge.CompactTarget[T]](h *ptrbridge.CompactHandle[T, D]) string {
//		return h.TypeName() + " = " + h.String()
//	}
type CompactTarget[T any] interface {
	CompactBinding() *Binding[T]
}

// FullTarget is implemented by descriptors of pointee types usable inside a
// FullHandle.
type FullTarget[T any] interface {
	FullBinding() *Binding[T]
}

// Plain marks descriptors of pointees that can exist by value in Go.
// Only plain descriptors admit NewCompact and NewFull.
type Plain interface {
	PlainData()
}

// Concurrent marks descriptors of pointees that may be referenced and
// mutated from several goroutines under the foreign model's synchronization.
type Concurrent interface {
	ConcurrentSafe()
}

// PlainCompactTarget is a compact descriptor of a plain-data pointee.
type PlainCompactTarget[T any] interface {
	CompactTarget[T]
	Plain
}

// PlainFullTarget is a full descriptor of a plain-data pointee.
type PlainFullTarget[T any] interface {
	FullTarget[T]
	Plain
}

// SharedTarget is a full descriptor of a concurrency-safe pointee. Only such
// handles can cross goroutines, through Share.
type SharedTarget[T any] interface {
	FullTarget[T]
	Concurrent
}
