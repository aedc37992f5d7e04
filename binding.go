//go:build !ios && !android && (darwin || linux) && (amd64 || arm64)

package ptrbridge

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/ptrbridge/internal/symbol"
)

// Kind is a foreign handle kind.
type Kind uint8

const (
	// Compact is the one-word handle with a non-atomic reference count.
	Compact Kind = iota
	// Full is the two-word handle with an atomic reference count.
	Full
)

// String returns the kind name used in manifests.
func (k Kind) String() string {
	if k == Full {
		return "full"
	}
	return "compact"
}

// Words returns the size of the handle's control block in pointer words.
func (k Kind) Words() int {
	if k == Full {
		return 2
	}
	return 1
}

func (k Kind) symbolKind() string {
	if k == Full {
		return symbol.FullKind
	}
	return symbol.CompactKind
}

func (k Kind) handleName() string {
	if k == Full {
		return "FullHandle"
	}
	return "CompactHandle"
}

// Resolver binds foreign trampolines by link name.
type Resolver interface {
	// Bind stores the function named symbol into fptr, a pointer to a Go func variable.
	Bind(fptr any, symbol string) error
}

// capacityReporter is implemented by resolvers whose uninit trampolines hand
// out a fixed amount of value storage, whatever the pointee type.
type capacityReporter interface {
	ValueCapacity() uintptr
}

// entryPoints is the resolved trampoline set of one binding.
// uninit is nil for opaque pointees.
type entryPoints struct {
	null   func(dst unsafe.Pointer)
	uninit func(dst unsafe.Pointer) unsafe.Pointer
	clone  func(src, dst unsafe.Pointer)
	get    func(src unsafe.Pointer) unsafe.Pointer
	drop   func(dst unsafe.Pointer)
}

// Binding is the static dispatch table for one pointee type and handle kind.
// Descriptors return it from CompactBinding or FullBinding; there is exactly
// one per (T, Kind) and it lives for the whole program.
type Binding[T any] struct {
	kind    Kind
	segment string
	name    string
	plain   bool
	size    uintptr
	ep      atomic.Pointer[entryPoints]
}

// NewPlainBinding declares the binding of a pointee that can exist by value in
// Go, so handles can be constructed from a value. Call it from a package-level
// variable initializer.
//
// New handles copy the value into foreign memory that the garbage collector
// does not scan, so T must not contain Go pointers: no pointer, string, slice,
// map, channel, func or interface fields. Fixed-size arrays and structs of
// numbers and bools are fine. NewPlainBinding panics if T holds pointers.
func NewPlainBinding[T any](kind Kind, segment, name string) *Binding[T] {
	if t := reflect.TypeFor[T](); holdsPointers(t) {
		panic(fmt.Sprintf("ptrbridge: plain pointee %s (%s) holds Go pointers", name, t))
	}
	return newBinding[T](kind, segment, name, true)
}

func holdsPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Array:
		return t.Len() > 0 && holdsPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if holdsPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	case reflect.Pointer, reflect.UnsafePointer, reflect.String, reflect.Slice,
		reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
		return true
	default:
		return false
	}
}

// NewOpaqueBinding declares the binding of a pointee that only exists behind
// foreign handles. Its uninit trampoline is never resolved.
func NewOpaqueBinding[T any](kind Kind, segment, name string) *Binding[T] {
	return newBinding[T](kind, segment, name, false)
}

func newBinding[T any](kind Kind, segment, name string, plain bool) *Binding[T] {
	b := &Binding[T]{
		kind:    kind,
		segment: segment,
		name:    name,
		plain:   plain,
		size:    unsafe.Sizeof(*new(T)),
	}
	register(b)
	return b
}

// Kind returns the handle kind the binding serves.
func (b *Binding[T]) Kind() Kind { return b.kind }

// Segment returns the per-type symbol segment.
func (b *Binding[T]) Segment() string { return b.segment }

// TypeName returns the display name used in diagnostics.
func (b *Binding[T]) TypeName() string { return b.name }

// Plain reports whether by-value construction is available.
func (b *Binding[T]) Plain() bool { return b.plain }

// Linked reports whether every trampoline has been resolved.
func (b *Binding[T]) Linked() bool { return b.ep.Load() != nil }

func (b *Binding[T]) info() BindingInfo {
	return BindingInfo{
		Kind:     b.kind,
		Segment:  b.segment,
		TypeName: b.name,
		Plain:    b.plain,
		Linked:   b.Linked(),
	}
}

// link resolves the binding's trampolines. The binding is only usable if all
// of them resolve.
func (b *Binding[T]) link(r Resolver, prefix string) error {
	if c, ok := r.(capacityReporter); ok && b.plain && b.size > c.ValueCapacity() {
		b.ep.Store(nil)
		return fmt.Errorf("%w: %s is %d bytes, resolver holds %d",
			ErrPointeeTooLarge, b.name, b.size, c.ValueCapacity())
	}
	ep := new(entryPoints)
	kind := b.kind.symbolKind()
	var errs []error
	bind := func(fptr any, op symbol.Op) {
		if err := r.Bind(fptr, symbol.Name(prefix, kind, b.segment, op)); err != nil {
			errs = append(errs, err)
		}
	}
	bind(&ep.null, symbol.OpNull)
	if b.plain {
		bind(&ep.uninit, symbol.OpUninit)
	}
	bind(&ep.clone, symbol.OpClone)
	bind(&ep.get, symbol.OpGet)
	bind(&ep.drop, symbol.OpDrop)

	if len(errs) > 0 {
		b.ep.Store(nil)
		return errors.Join(errs...)
	}
	b.ep.Store(ep)
	Logger().Debug("linked binding",
		zap.Stringer("kind", b.kind),
		zap.String("segment", b.segment),
		zap.String("type", b.name))
	return nil
}

func (b *Binding[T]) entry() *entryPoints {
	if ep := b.ep.Load(); ep != nil {
		return ep
	}
	err := Init()
	if ep := b.ep.Load(); ep != nil {
		return ep
	}
	fail(&Defect{Class: Unlinked, Kind: b.kind, TypeName: b.name, Err: err})
	return nil
}

func (b *Binding[T]) null(dst unsafe.Pointer) {
	b.entry().null(dst)
}

func (b *Binding[T]) construct(dst unsafe.Pointer, v T) {
	ep := b.entry()
	if ep.uninit == nil {
		fail(&Defect{Class: UnsupportedConstruction, Kind: b.kind, TypeName: b.name})
	}
	p := ep.uninit(dst)
	if p == nil {
		fail(&Defect{Class: AllocationFailure, Kind: b.kind, TypeName: b.name})
	}
	*(*T)(p) = v
}

func (b *Binding[T]) clone(src, dst unsafe.Pointer) {
	b.entry().clone(src, dst)
}

func (b *Binding[T]) get(src unsafe.Pointer) *T {
	return (*T)(b.entry().get(src))
}

func (b *Binding[T]) drop(dst unsafe.Pointer) {
	b.entry().drop(dst)
}

// BindingInfo describes a registered binding.
type BindingInfo struct {
	Kind     Kind
	Segment  string
	TypeName string
	Plain    bool
	Linked   bool
}

// Symbols returns the trampoline names the binding needs under prefix.
func (i BindingInfo) Symbols(prefix string) []string {
	return symbol.Names(prefix, i.Kind.symbolKind(), i.Segment, i.Plain)
}

type linkable interface {
	link(r Resolver, prefix string) error
	info() BindingInfo
}

var registry struct {
	mu       sync.Mutex
	bindings []linkable
	resolver Resolver
	prefix   string
}

func register(b linkable) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.bindings = append(registry.bindings, b)
	if registry.resolver != nil {
		if err := b.link(registry.resolver, registry.prefix); err != nil {
			Logger().Warn("late binding did not link", zap.Error(err))
		}
	}
}

// Link resolves every registered binding against r using the symbol prefix.
// Bindings declared later are linked against r as they register. The
// returned error joins every missing trampoline; bindings whose trampolines
// all resolved are usable regardless.
func Link(r Resolver, prefix string) error {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.resolver, registry.prefix = r, prefix

	var errs []error
	for _, b := range registry.bindings {
		if err := b.link(r, prefix); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func linked() bool {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return registry.resolver != nil
}

// Bindings returns a snapshot of every registered binding.
func Bindings() []BindingInfo {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	out := make([]BindingInfo, 0, len(registry.bindings))
	for _, b := range registry.bindings {
		out = append(out, b.info())
	}
	return out
}

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
