// Package native binds the engine's Value type to external native methods
// reached through a shared library loaded at runtime, and ships a small
// in-process table of built-in natives so the engine runs end-to-end
// without one.
package native

import (
	"unsafe"

	"github.com/finchvm/finch/pkg/vm"
)

// cTag mirrors vm.ValueKind in the C-compatible layout crossing the native
// boundary; kept as its own type so the wire layout doesn't silently shift
// if vm.ValueKind's iota ordering ever changes.
type cTag int32

const (
	cTagInt cTag = iota
	cTagLong
	cTagFloat
	cTagDouble
	cTagReference
	cTagArrayReference
	cTagNull
)

// CValue is the C-compatible tagged representation of vm.Value that
// crosses the native-call boundary, per §6's "Value must be laid out with
// a C-compatible tagged representation" requirement. Int/Float widen into
// the 8-byte slots so a single layout covers every primitive kind; Ptr
// carries a *vm.ScalarObject or *vm.ArrayObject, opaque to the native side.
type CValue struct {
	Tag cTag
	_   int32 // padding to keep the union fields 8-byte aligned
	I64 int64
	F64 float64
	Ptr unsafe.Pointer
}

// ToCValue converts an interpreter Value to its wire form.
func ToCValue(v vm.Value) CValue {
	switch v.Kind {
	case vm.KindInt:
		return CValue{Tag: cTagInt, I64: int64(v.Int)}
	case vm.KindLong:
		return CValue{Tag: cTagLong, I64: v.Long}
	case vm.KindFloat:
		return CValue{Tag: cTagFloat, F64: float64(v.Float)}
	case vm.KindDouble:
		return CValue{Tag: cTagDouble, F64: v.Double}
	case vm.KindReference:
		return CValue{Tag: cTagReference, Ptr: unsafe.Pointer(v.Ref)}
	case vm.KindArrayReference:
		return CValue{Tag: cTagArrayReference, Ptr: unsafe.Pointer(v.Arr)}
	default:
		return CValue{Tag: cTagNull}
	}
}

// FromCValue converts a wire value back to an interpreter Value.
func FromCValue(c CValue) vm.Value {
	switch c.Tag {
	case cTagInt:
		return vm.IntValue(int32(c.I64))
	case cTagLong:
		return vm.LongValue(c.I64)
	case cTagFloat:
		return vm.FloatValue(float32(c.F64))
	case cTagDouble:
		return vm.DoubleValue(c.F64)
	case cTagReference:
		return vm.RefValue((*vm.ScalarObject)(c.Ptr))
	case cTagArrayReference:
		return vm.ArrValue((*vm.ArrayObject)(c.Ptr))
	default:
		return vm.NullValue()
	}
}
