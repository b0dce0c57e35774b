// Package sig holds the typed representations of JVM type descriptors and
// the symbolic references (class/method/field) that the constant pool and
// the interpreter resolve against. Nothing here touches bytecode or class
// files; it is pure descriptor grammar.
package sig

import (
	"fmt"
	"strings"

	"github.com/finchvm/finch/pkg/vmerr"
)

// Kind tags the variant of a Type.
type Kind int

const (
	KindByte Kind = iota
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindBoolean
	KindReference
)

// Type is a JVM type descriptor: one of the eight primitives, or a
// reference to a ClassSig (which may itself be an array type).
type Type struct {
	Kind  Kind
	Class ClassSig // only meaningful when Kind == KindReference
}

func Byte() Type    { return Type{Kind: KindByte} }
func Char() Type    { return Type{Kind: KindChar} }
func Short() Type   { return Type{Kind: KindShort} }
func Int() Type     { return Type{Kind: KindInt} }
func Long() Type    { return Type{Kind: KindLong} }
func Float() Type   { return Type{Kind: KindFloat} }
func Double() Type  { return Type{Kind: KindDouble} }
func Boolean() Type { return Type{Kind: KindBoolean} }

func Reference(c ClassSig) Type { return Type{Kind: KindReference, Class: c} }

// IsWide reports whether a type occupies two stack/local slots.
func (t Type) IsWide() bool { return t.Kind == KindLong || t.Kind == KindDouble }

// Descriptor formats the type back into its single-character (or L...;/[...)
// descriptor form. Round-tripping Descriptor -> ParseType -> Descriptor is
// the identity, per the parser round-trip invariant.
func (t Type) Descriptor() string {
	switch t.Kind {
	case KindByte:
		return "B"
	case KindChar:
		return "C"
	case KindShort:
		return "S"
	case KindInt:
		return "I"
	case KindLong:
		return "J"
	case KindFloat:
		return "F"
	case KindDouble:
		return "D"
	case KindBoolean:
		return "Z"
	case KindReference:
		return t.Class.Descriptor()
	}
	return ""
}

func (t Type) String() string { return t.Descriptor() }

// ParseType parses a single type descriptor from the start of s, returning
// the parsed type and the number of bytes consumed. 'V' (void) is rejected
// here; use ParseReturnType for return-type position, where void is valid.
func ParseType(s string) (Type, int, error) {
	if len(s) == 0 {
		return Type{}, 0, vmerr.New(vmerr.ErrMalformedDescriptor, "empty descriptor")
	}
	switch s[0] {
	case 'B':
		return Byte(), 1, nil
	case 'C':
		return Char(), 1, nil
	case 'S':
		return Short(), 1, nil
	case 'I':
		return Int(), 1, nil
	case 'J':
		return Long(), 1, nil
	case 'F':
		return Float(), 1, nil
	case 'D':
		return Double(), 1, nil
	case 'Z':
		return Boolean(), 1, nil
	case 'L':
		end := strings.IndexByte(s, ';')
		if end < 0 {
			return Type{}, 0, vmerr.New(vmerr.ErrMalformedDescriptor, "unterminated class descriptor %q", s)
		}
		return Reference(Scalar(s[1:end])), end + 1, nil
	case '[':
		inner, n, err := ParseType(s[1:])
		if err != nil {
			return Type{}, 0, err
		}
		return Reference(Array(inner)), n + 1, nil
	default:
		return Type{}, 0, vmerr.New(vmerr.ErrMalformedDescriptor, "unrecognized descriptor char %q in %q", s[0], s)
	}
}

// ParseReturnType parses a return-type descriptor, where 'V' denotes "no
// type" (void); the second return value is false for void.
func ParseReturnType(s string) (Type, bool, int, error) {
	if len(s) > 0 && s[0] == 'V' {
		return Type{}, false, 1, nil
	}
	t, n, err := ParseType(s)
	return t, true, n, err
}

// ClassSigKind tags whether a ClassSig names a scalar class/interface or an
// array type.
type ClassSigKind int

const (
	ClassSigScalar ClassSigKind = iota
	ClassSigArray
)

// ClassSig is either a scalar class name in internal (slash) form, e.g.
// "java/lang/String", or an array of some component Type. A scalar name
// beginning with '[' is reparsed as an array signature by Scalar.
type ClassSig struct {
	SigKind   ClassSigKind
	Name      string // scalar form only
	Component *Type  // array form only
}

// Scalar builds a ClassSig from an internal-form class name. If the name
// begins with '[' it is instead parsed as an array signature, matching the
// invariant that a scalar sig beginning with '[' parses as an array sig.
func Scalar(name string) ClassSig {
	if strings.HasPrefix(name, "[") {
		t, _, err := ParseType(name)
		if err == nil && t.Kind == KindReference {
			return t.Class
		}
	}
	return ClassSig{SigKind: ClassSigScalar, Name: name}
}

// Array builds an array ClassSig with the given component type.
func Array(component Type) ClassSig {
	return ClassSig{SigKind: ClassSigArray, Component: &component}
}

func (c ClassSig) IsArray() bool { return c.SigKind == ClassSigArray }

// Descriptor formats the class signature in descriptor form: "Lname;" for a
// scalar, "[<component>" for an array.
func (c ClassSig) Descriptor() string {
	if c.SigKind == ClassSigArray {
		return "[" + c.Component.Descriptor()
	}
	return "L" + c.Name + ";"
}

func (c ClassSig) String() string {
	if c.SigKind == ClassSigArray {
		return c.Descriptor()
	}
	return c.Name
}

// ParseClassSig parses a class signature given in internal form, which is
// either a plain scalar name or (for arrays) a full array type descriptor.
func ParseClassSig(s string) (ClassSig, error) {
	if strings.HasPrefix(s, "[") {
		t, n, err := ParseType(s)
		if err != nil {
			return ClassSig{}, err
		}
		if n != len(s) || t.Kind != KindReference {
			return ClassSig{}, vmerr.New(vmerr.ErrMalformedDescriptor, "trailing data in class signature %q", s)
		}
		return t.Class, nil
	}
	return Scalar(s), nil
}

// MethodSig is a method's name, parameter types in order, and optional
// return type (nil for void).
type MethodSig struct {
	Name   string
	Params []Type
	Return *Type
}

// NewMethodSig parses "(params)return" into a MethodSig for the given name.
func NewMethodSig(name, descriptor string) (MethodSig, error) {
	if len(descriptor) == 0 || descriptor[0] != '(' {
		return MethodSig{}, vmerr.New(vmerr.ErrMalformedDescriptor, "method descriptor %q missing '('", descriptor)
	}
	rest := descriptor[1:]
	var params []Type
	for len(rest) > 0 && rest[0] != ')' {
		t, n, err := ParseType(rest)
		if err != nil {
			return MethodSig{}, err
		}
		params = append(params, t)
		rest = rest[n:]
	}
	if len(rest) == 0 {
		return MethodSig{}, vmerr.New(vmerr.ErrMalformedDescriptor, "method descriptor %q missing ')'", descriptor)
	}
	rest = rest[1:] // skip ')'
	ret, hasRet, n, err := ParseReturnType(rest)
	if err != nil {
		return MethodSig{}, err
	}
	if n != len(rest) {
		return MethodSig{}, vmerr.New(vmerr.ErrMalformedDescriptor, "trailing data after return type in %q", descriptor)
	}
	ms := MethodSig{Name: name, Params: params}
	if hasRet {
		ms.Return = &ret
	}
	return ms, nil
}

// Descriptor formats the method's "(params)return" descriptor, excluding
// the name.
func (m MethodSig) Descriptor() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range m.Params {
		b.WriteString(p.Descriptor())
	}
	b.WriteByte(')')
	if m.Return != nil {
		b.WriteString(m.Return.Descriptor())
	} else {
		b.WriteByte('V')
	}
	return b.String()
}

// Key returns the canonical string used as a map key wherever the spec
// calls for structural-equality lookup on a MethodSig: Go map keys cannot
// embed a slice field directly, and the descriptor round-trips exactly
// (§4.3), so it stands in for structural equality.
func (m MethodSig) Key() string {
	return m.Name + ":" + m.Descriptor()
}

func (m MethodSig) String() string { return m.Key() }

// FieldSig is a field's name and declared type.
type FieldSig struct {
	Name string
	Type Type
}

func NewFieldSig(name, descriptor string) (FieldSig, error) {
	t, n, err := ParseType(descriptor)
	if err != nil {
		return FieldSig{}, err
	}
	if n != len(descriptor) {
		return FieldSig{}, vmerr.New(vmerr.ErrMalformedDescriptor, "trailing data in field descriptor %q", descriptor)
	}
	return FieldSig{Name: name, Type: t}, nil
}

func (f FieldSig) Key() string { return f.Name + ":" + f.Type.Descriptor() }

func (f FieldSig) String() string { return fmt.Sprintf("%s:%s", f.Name, f.Type.Descriptor()) }

// ClassRef is a symbolic reference to a class.
type ClassRef struct{ Class ClassSig }

func (r ClassRef) Key() string { return r.Class.String() }

// MethodRef is a symbolic reference to a method on a class.
type MethodRef struct {
	Owner ClassSig
	Sig   MethodSig
}

func (r MethodRef) Key() string { return r.Owner.String() + "#" + r.Sig.Key() }

// FieldRef is a symbolic reference to a field on a class.
type FieldRef struct {
	Owner ClassSig
	Sig   FieldSig
}

func (r FieldRef) Key() string { return r.Owner.String() + "#" + r.Sig.Key() }
