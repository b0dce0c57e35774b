package vm

import (
	"github.com/finchvm/finch/pkg/classfile"
	"github.com/finchvm/finch/pkg/rtpool"
	"github.com/finchvm/finch/pkg/sig"
)

// MethodCodeKind tags which of the three Method.Code variants is live.
type MethodCodeKind int

const (
	CodeUnresolvedNative MethodCodeKind = iota
	CodeNative
	CodeBytecode
)

// NativeFn is the Go-side shape a bound native symbol is called through,
// regardless of whether it came from a dlopen'd library or an in-process
// TableLibrary; see pkg/native.
type NativeFn func(args []Value) (Value, bool, error)

// Method is a runtime method: either bytecode with a fixed local count, a
// bound native function, or a native method awaiting its library.
type Method struct {
	Sig         sig.MethodSig
	AccessFlags uint16
	CodeKind    MethodCodeKind
	MaxLocals   uint16
	Bytecode    []byte
	Exceptions  []classfile.ExceptionHandler
	Native      NativeFn
}

func (m *Method) IsStatic() bool { return m.AccessFlags&classfile.AccStatic != 0 }

// Class is the runtime representation of a loaded class: its resolved
// constant pool, method table, and static/instance field layout.
//
// FieldValues is nil until <clinit> has begun; VM.ensureInitialized flips it
// to a non-nil map populated from ConstantValue defaults *before* invoking
// <clinit>, so a re-entrant ensureInitialized call (from within <clinit> itself)
// observes non-nil and returns immediately. Preserve this ordering — see
// the class-init idempotence property.
type Class struct {
	Sig         sig.ClassSig
	AccessFlags uint16
	SuperClass  sig.ClassSig
	HasSuper    bool
	Pool        *rtpool.Pool
	Methods     map[string]*Method      // keyed by sig.MethodSig.Key()
	Fields      map[string]uint16       // keyed by sig.FieldSig.Key() -> access flags
	FieldSigs   map[string]sig.FieldSig // keyed the same way, for iteration
	FieldConsts map[string]uint16       // field key -> ConstantValue pool index, only for fields that have one
	FieldValues map[string]Value        // static storage; nil until init begins
}

func (c *Class) IsInitialized() bool { return c.FieldValues != nil }

// MethodByKey looks up a method by its declared owner's signature key.
// Single-class only: the spec requires field and method lookup to stay
// non-recursive at this tier (§4.4, §9) even though real JVMs walk the
// superclass chain.
func (c *Class) MethodByKey(key string) (*Method, bool) {
	m, ok := c.Methods[key]
	return m, ok
}
