//go:build !ios && !android && (darwin || linux) && (amd64 || arm64)

package ptrbridge

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrPointeeTooLarge is returned by Link for a plain binding whose pointee
// does not fit the value storage the resolver allocates.
var ErrPointeeTooLarge = errors.New("ptrbridge: pointee too large for resolver")

// Defect sentinels. A *Defect unwraps to exactly one of them.
var (
	// ErrNullDeref indicates Deref was called on a null handle.
	ErrNullDeref = errors.New("ptrbridge: null handle dereference")

	// ErrUnsupportedConstruction indicates by-value construction of an opaque pointee.
	ErrUnsupportedConstruction = errors.New("ptrbridge: pointee cannot be constructed by value")

	// ErrAllocationFailure indicates the foreign allocator returned no storage.
	ErrAllocationFailure = errors.New("ptrbridge: foreign allocation failed")

	// ErrUnlinked indicates a handle operation ran before its trampolines were resolved.
	ErrUnlinked = errors.New("ptrbridge: trampolines not linked")
)

// DefectClass classifies a Defect.
type DefectClass uint8

// Defect classes.
const (
	NullDeref DefectClass = iota + 1
	UnsupportedConstruction
	AllocationFailure
	Unlinked
)

func (c DefectClass) sentinel() error {
	switch c {
	case NullDeref:
		return ErrNullDeref
	case UnsupportedConstruction:
		return ErrUnsupportedConstruction
	case AllocationFailure:
		return ErrAllocationFailure
	default:
		return ErrUnlinked
	}
}

// Defect is a bridging programming error. It is never returned: handle
// operations panic with a *Defect, since reaching one means the typing that
// should have made the state unreachable was bypassed.
type Defect struct {
	Class    DefectClass
	Kind     Kind
	TypeName string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (d *Defect) Error() string {
	h := fmt.Sprintf("%s[%s]", d.Kind.handleName(), d.TypeName)
	switch d.Class {
	case NullDeref:
		return "ptrbridge: called Deref on a null " + h
	case UnsupportedConstruction:
		return "ptrbridge: " + h + " pointee cannot be constructed by value"
	case AllocationFailure:
		return "ptrbridge: foreign allocation failed for " + h
	default:
		if d.Err != nil {
			return fmt.Sprintf("ptrbridge: %s trampolines not linked: %v", h, d.Err)
		}
		return "ptrbridge: " + h + " trampolines not linked"
	}
}

// Unwrap returns the class sentinel and the cause.
func (d *Defect) Unwrap() []error {
	if d.Err == nil {
		return []error{d.Class.sentinel()}
	}
	return []error{d.Class.sentinel(), d.Err}
}

func fail(d *Defect) {
	Logger().Error("bridge defect", zap.Error(d))
	panic(d)
}
