// Package symbol builds and parses the link names of foreign handle trampolines.
//
// Every trampoline is named <prefix><kind>$<segment>$<op>, for example
//
//	cxxbridge1$seastar$lw_shared_ptr$u32$clone
//
// The segment identifies the pointee type and may itself contain '$' for
// namespaced types emitted by the code generator.
package symbol

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultPrefix is the prefix used by the bridge library unless configured otherwise.
const DefaultPrefix = "cxxbridge1$seastar$"

// Handle kind segments.
const (
	CompactKind = "lw_shared_ptr"
	FullKind    = "shared_ptr"
)

// Op is a trampoline operation.
type Op string

// Trampoline operations.
const (
	OpNull   Op = "null"
	OpUninit Op = "uninit"
	OpClone  Op = "clone"
	OpGet    Op = "get"
	OpDrop   Op = "drop"
)

// Ops lists every operation in link order. OpUninit is only exported for plain-data pointees.
var Ops = []Op{OpNull, OpUninit, OpClone, OpGet, OpDrop}

// ErrMalformed is returned by Parse for names that do not follow the convention.
var ErrMalformed = errors.New("ptrbridge: malformed trampoline symbol")

// Name returns the link name of one trampoline.
func Name(prefix, kind, segment string, op Op) string {
	return prefix + kind + "$" + segment + "$" + string(op)
}

// Names returns the link names of every trampoline a (kind, segment) pair needs.
// The uninit entry is included only when plain is true.
func Names(prefix, kind, segment string, plain bool) []string {
	names := make([]string, 0, len(Ops))
	for _, op := range Ops {
		if op == OpUninit && !plain {
			continue
		}
		names = append(names, Name(prefix, kind, segment, op))
	}
	return names
}

// Parts is a parsed trampoline name.
type Parts struct {
	Kind    string
	Segment string
	Op      Op
}

// Parse splits name back into kind, segment and op.
func Parse(prefix, name string) (Parts, error) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok {
		return Parts{}, fmt.Errorf("%w: %q lacks prefix %q", ErrMalformed, name, prefix)
	}
	kind, rest, ok := strings.Cut(rest, "$")
	if !ok || (kind != CompactKind && kind != FullKind) {
		return Parts{}, fmt.Errorf("%w: %q has no handle kind", ErrMalformed, name)
	}
	i := strings.LastIndexByte(rest, '$')
	if i <= 0 {
		return Parts{}, fmt.Errorf("%w: %q has no operation", ErrMalformed, name)
	}
	op := Op(rest[i+1:])
	switch op {
	case OpNull, OpUninit, OpClone, OpGet, OpDrop:
	default:
		return Parts{}, fmt.Errorf("%w: %q has unknown operation %q", ErrMalformed, name, op)
	}
	return Parts{Kind: kind, Segment: rest[:i], Op: op}, nil
}
