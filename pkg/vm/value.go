package vm

import "github.com/finchvm/finch/pkg/sig"

// ValueKind tags the variant of a Value. Int subsumes byte/char/short/
// boolean on the operand stack, matching the descriptor grammar's
// Int-backed sub-32-bit kinds.
type ValueKind int

const (
	KindInt ValueKind = iota
	KindLong
	KindFloat
	KindDouble
	KindReference
	KindArrayReference
	KindNull
	// KindEmpty marks the high slot of a wide local variable. It is
	// never produced by an instruction and never loaded independently;
	// attempting to read it is a TypeMismatch.
	KindEmpty
)

// Value is the tagged operand/local/field value. All integer arithmetic on
// Int/Long wraps on overflow.
type Value struct {
	Kind   ValueKind
	Int    int32
	Long   int64
	Float  float32
	Double float64
	Ref    *ScalarObject
	Arr    *ArrayObject
}

func IntValue(v int32) Value         { return Value{Kind: KindInt, Int: v} }
func LongValue(v int64) Value        { return Value{Kind: KindLong, Long: v} }
func FloatValue(v float32) Value     { return Value{Kind: KindFloat, Float: v} }
func DoubleValue(v float64) Value    { return Value{Kind: KindDouble, Double: v} }
func RefValue(o *ScalarObject) Value { return Value{Kind: KindReference, Ref: o} }
func ArrValue(a *ArrayObject) Value  { return Value{Kind: KindArrayReference, Arr: a} }
func NullValue() Value               { return Value{Kind: KindNull} }
func EmptyValue() Value              { return Value{Kind: KindEmpty} }

// IsWide reports whether this value, placed into a local slot, occupies
// the next slot too (Long, Double).
func (v Value) IsWide() bool { return v.Kind == KindLong || v.Kind == KindDouble }

// DefaultValue returns the zero value for a declared type: 0, 0.0, or null
// for references, per the scalar/array object field-initialization rule.
func DefaultValue(t sig.Type) Value {
	switch t.Kind {
	case sig.KindLong:
		return LongValue(0)
	case sig.KindFloat:
		return FloatValue(0)
	case sig.KindDouble:
		return DoubleValue(0)
	case sig.KindReference:
		return NullValue()
	default:
		return IntValue(0)
	}
}

// ScalarObject is a heap object with a class and its own field values,
// mutated only through PutField/SetField. Reference-counted-by-convention:
// Go's garbage collector tracks liveness so no explicit refcount field is
// needed, but aliasing semantics (multiple Values sharing one *ScalarObject)
// are exactly the spec's reference semantics.
type ScalarObject struct {
	Class  *Class
	Fields map[string]Value // keyed by sig.FieldSig.Key()
}

// GetField reads an instance field; ok is false when the object has no slot
// under key. No default is synthesized here: instance fields are given their
// type's zero value when the object is constructed.
func (o *ScalarObject) GetField(key string) (Value, bool) {
	v, ok := o.Fields[key]
	return v, ok
}

func (o *ScalarObject) SetField(key string, v Value) {
	o.Fields[key] = v
}

// ArrayObject is a fixed-length homogeneous array. Length is set at
// creation by NEWARRAY/ANEWARRAY and never changes.
type ArrayObject struct {
	Element  sig.Type
	Elements []Value
}

func NewArrayObject(element sig.Type, length int) *ArrayObject {
	elems := make([]Value, length)
	def := DefaultValue(element)
	for i := range elems {
		elems[i] = def
	}
	return &ArrayObject{Element: element, Elements: elems}
}

func (a *ArrayObject) Length() int { return len(a.Elements) }

// CopyFrom copies a contiguous slice from src into a, backing the
// System.arraycopy native in pkg/native/builtin under its non-overlap assumption (§9 "Array overlap" — overlapping regions are
// undefined at this tier).
func (a *ArrayObject) CopyFrom(src *ArrayObject, srcPos, dstPos, length int) {
	copy(a.Elements[dstPos:dstPos+length], src.Elements[srcPos:srcPos+length])
}
