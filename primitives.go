//go:build !ios && !android && (darwin || linux) && (amd64 || arm64)

package ptrbridge

// Descriptors for the pointee types the bridge library supports out of the
// box. Primitive pointees are plain and Concurrent and come in both kinds.
//
// The symbol segments are the foreign library's names for the types: uint
// and int map to the pointer-sized usize and isize.

// primitive holds both bindings of one primitive pointee.
type primitive[T any] struct {
	compact *Binding[T]
	full    *Binding[T]
}

func newPrimitive[T any](segment, name string) primitive[T] {
	return primitive[T]{
		compact: NewPlainBinding[T](Compact, segment, name),
		full:    NewPlainBinding[T](Full, segment, name),
	}
}

var (
	boolBindings    = newPrimitive[bool]("bool", "bool")
	uint8Bindings   = newPrimitive[uint8]("u8", "uint8")
	uint16Bindings  = newPrimitive[uint16]("u16", "uint16")
	uint32Bindings  = newPrimitive[uint32]("u32", "uint32")
	uint64Bindings  = newPrimitive[uint64]("u64", "uint64")
	uintBindings    = newPrimitive[uint]("usize", "uint")
	int8Bindings    = newPrimitive[int8]("i8", "int8")
	int16Bindings   = newPrimitive[int16]("i16", "int16")
	int32Bindings   = newPrimitive[int32]("i32", "int32")
	int64Bindings   = newPrimitive[int64]("i64", "int64")
	intBindings     = newPrimitive[int]("isize", "int")
	float32Bindings = newPrimitive[float32]("f32", "float32")
	float64Bindings = newPrimitive[float64]("f64", "float64")
)

type (
	// Bool describes bool pointees.
	Bool struct{}
	// Uint8 describes uint8 pointees.
	Uint8 struct{}
	// Uint16 describes uint16 pointees.
	Uint16 struct{}
	// Uint32 describes uint32 pointees.
	Uint32 struct{}
	// Uint64 describes uint64 pointees.
	Uint64 struct{}
	// Uint describes uint pointees.
	Uint struct{}
	// Int8 describes int8 pointees.
	Int8 struct{}
	// Int16 describes int16 pointees.
	Int16 struct{}
	// Int32 describes int32 pointees.
	Int32 struct{}
	// Int64 describes int64 pointees.
	Int64 struct{}
	// Int describes int pointees.
	Int struct{}
	// Float32 describes float32 pointees.
	Float32 struct{}
	// Float64 describes float64 pointees.
	Float64 struct{}
)

func (Bool) CompactBinding() *Binding[bool] { return boolBindings.compact }
func (Bool) FullBinding() *Binding[bool]    { return boolBindings.full }
func (Bool) PlainData()                     {}
func (Bool) ConcurrentSafe()                {}

func (Uint8) CompactBinding() *Binding[uint8] { return uint8Bindings.compact }
func (Uint8) FullBinding() *Binding[uint8]    { return uint8Bindings.full }
func (Uint8) PlainData()                      {}
func (Uint8) ConcurrentSafe()                 {}

func (Uint16) CompactBinding() *Binding[uint16] { return uint16Bindings.compact }
func (Uint16) FullBinding() *Binding[uint16]    { return uint16Bindings.full }
func (Uint16) PlainData()                       {}
func (Uint16) ConcurrentSafe()                  {}

func (Uint32) CompactBinding() *Binding[uint32] { return uint32Bindings.compact }
func (Uint32) FullBinding() *Binding[uint32]    { return uint32Bindings.full }
func (Uint32) PlainData()                       {}
func (Uint32) ConcurrentSafe()                  {}

func (Uint64) CompactBinding() *Binding[uint64] { return uint64Bindings.compact }
func (Uint64) FullBinding() *Binding[uint64]    { return uint64Bindings.full }
func (Uint64) PlainData()                       {}
func (Uint64) ConcurrentSafe()                  {}

func (Uint) CompactBinding() *Binding[uint] { return uintBindings.compact }
func (Uint) FullBinding() *Binding[uint]    { return uintBindings.full }
func (Uint) PlainData()                     {}
func (Uint) ConcurrentSafe()                {}

func (Int8) CompactBinding() *Binding[int8] { return int8Bindings.compact }
func (Int8) FullBinding() *Binding[int8]    { return int8Bindings.full }
func (Int8) PlainData()                     {}
func (Int8) ConcurrentSafe()                {}

func (Int16) CompactBinding() *Binding[int16] { return int16Bindings.compact }
func (Int16) FullBinding() *Binding[int16]    { return int16Bindings.full }
func (Int16) PlainData()                      {}
func (Int16) ConcurrentSafe()                 {}

func (Int32) CompactBinding() *Binding[int32] { return int32Bindings.compact }
func (Int32) FullBinding() *Binding[int32]    { return int32Bindings.full }
func (Int32) PlainData()                      {}
func (Int32) ConcurrentSafe()                 {}

func (Int64) CompactBinding() *Binding[int64] { return int64Bindings.compact }
func (Int64) FullBinding() *Binding[int64]    { return int64Bindings.full }
func (Int64) PlainData()                      {}
func (Int64) ConcurrentSafe()                 {}

func (Int) CompactBinding() *Binding[int] { return intBindings.compact }
func (Int) FullBinding() *Binding[int]    { return intBindings.full }
func (Int) PlainData()                    {}
func (Int) ConcurrentSafe()               {}

func (Float32) CompactBinding() *Binding[float32] { return float32Bindings.compact }
func (Float32) FullBinding() *Binding[float32]    { return float32Bindings.full }
func (Float32) PlainData()                        {}
func (Float32) ConcurrentSafe()                   {}

func (Float64) CompactBinding() *Binding[float64] { return float64Bindings.compact }
func (Float64) FullBinding() *Binding[float64]    { return float64Bindings.full }
func (Float64) PlainData()                        {}
func (Float64) ConcurrentSafe()                   {}

// NativeString is the foreign runtime's string type. It only exists behind
// handles created on the foreign side; its contents are read through the
// string bridge, not through this package.
type NativeString struct {
	_ [0]func()
}

var (
	stringCompact = NewOpaqueBinding[NativeString](Compact, "string", "NativeString")
	stringFull    = NewOpaqueBinding[NativeString](Full, "string", "NativeString")
)

// String describes NativeString pointees. It is opaque and not Concurrent.
type String struct{}

func (String) CompactBinding() *Binding[NativeString] { return stringCompact }
func (String) FullBinding() *Binding[NativeString]    { return stringFull }
