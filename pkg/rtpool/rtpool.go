// Package rtpool lifts a parsed classfile constant pool into a tagged
// runtime representation: literal values ready for LDC, and symbolic
// references resolved into pkg/sig types instead of raw indices.
package rtpool

import (
	"github.com/finchvm/finch/pkg/classfile"
	"github.com/finchvm/finch/pkg/sig"
	"github.com/finchvm/finch/pkg/vmerr"
)

// Kind tags the variant of a runtime pool Entry.
type Kind int

const (
	KindNone Kind = iota
	KindUTF8
	KindIntLiteral
	KindLongLiteral
	KindFloatLiteral
	KindDoubleLiteral
	KindStringLiteral
	KindClassRef
	KindMethodRef
	KindFieldRef
	KindInterfaceMethodRef
)

// Entry is one lifted constant pool slot.
type Entry struct {
	Kind      Kind
	UTF8      string
	IntVal    int32
	LongVal   int64
	FloatVal  float32
	DoubleVal float64
	StringVal string // resolved text for KindStringLiteral
	ClassRef  sig.ClassRef
	MethodRef sig.MethodRef
	FieldRef  sig.FieldRef
}

// Pool is the lifted, 1-indexed runtime constant pool for one class file.
// Index 0 and the second slot of any Long/Double entry are KindNone, per
// the class file format's own reservation rule.
type Pool struct {
	entries []Entry
}

// Build lifts every structurally-resolvable constant pool entry of cf,
// chasing Class -> Utf8 and member-ref -> NameAndType -> Utf8 chains
// eagerly so every symbolic reference comes out as a pkg/sig value.
// Nothing here touches the class loader: forward references to classes
// that do not yet exist stay symbolic.
func Build(cf *classfile.ClassFile) (*Pool, error) {
	raw := cf.ConstantPool
	entries := make([]Entry, len(raw))

	for i, c := range raw {
		switch c.Tag {
		case classfile.TagUtf8:
			entries[i] = Entry{Kind: KindUTF8, UTF8: c.Utf8}
		case classfile.TagInteger:
			entries[i] = Entry{Kind: KindIntLiteral, IntVal: c.Int}
		case classfile.TagLong:
			entries[i] = Entry{Kind: KindLongLiteral, LongVal: c.Long}
		case classfile.TagFloat:
			entries[i] = Entry{Kind: KindFloatLiteral, FloatVal: c.Float}
		case classfile.TagDouble:
			entries[i] = Entry{Kind: KindDoubleLiteral, DoubleVal: c.Double}

		case classfile.TagClass:
			name, err := cf.Utf8At(c.A)
			if err != nil {
				return nil, vmerr.New(vmerr.ErrMalformedDescriptor, "class name at pool index %d: %v", i, err)
			}
			entries[i] = Entry{Kind: KindClassRef, ClassRef: sig.ClassRef{Class: sig.Scalar(name)}}

		case classfile.TagString:
			text, err := cf.Utf8At(c.A)
			if err != nil {
				return nil, vmerr.New(vmerr.ErrMalformedDescriptor, "string literal at pool index %d: %v", i, err)
			}
			entries[i] = Entry{Kind: KindStringLiteral, StringVal: text}

		case classfile.TagFieldref:
			owner, name, descriptor, err := memberRefAt(cf, c, i)
			if err != nil {
				return nil, err
			}
			fs, err := sig.NewFieldSig(name, descriptor)
			if err != nil {
				return nil, err
			}
			entries[i] = Entry{Kind: KindFieldRef, FieldRef: sig.FieldRef{Owner: owner, Sig: fs}}

		case classfile.TagMethodref, classfile.TagInterfaceMethodref:
			owner, name, descriptor, err := memberRefAt(cf, c, i)
			if err != nil {
				return nil, err
			}
			ms, err := sig.NewMethodSig(name, descriptor)
			if err != nil {
				return nil, err
			}
			kind := KindMethodRef
			if c.Tag == classfile.TagInterfaceMethodref {
				kind = KindInterfaceMethodRef
			}
			entries[i] = Entry{Kind: kind, MethodRef: sig.MethodRef{Owner: owner, Sig: ms}}

		default:
			// Pad slots, NameAndType (only ever reached through a member
			// ref above), and the MethodHandle/MethodType/Dynamic family
			// stay KindNone in the lifted pool.
			entries[i] = Entry{Kind: KindNone}
		}
	}

	return &Pool{entries: entries}, nil
}

// memberRefAt resolves the shared Fieldref/Methodref shape: owner class
// through the ref's first operand, name and descriptor through its
// NameAndType.
func memberRefAt(cf *classfile.ClassFile, c classfile.Constant, index int) (sig.ClassSig, string, string, error) {
	ownerName, err := cf.ClassNameAt(c.A)
	if err != nil {
		return sig.ClassSig{}, "", "", vmerr.New(vmerr.ErrMalformedDescriptor, "member ref owner at pool index %d: %v", index, err)
	}
	name, descriptor, err := cf.NameAndTypeAt(c.B)
	if err != nil {
		return sig.ClassSig{}, "", "", vmerr.New(vmerr.ErrMalformedDescriptor, "member ref name-and-type at pool index %d: %v", index, err)
	}
	return sig.Scalar(ownerName), name, descriptor, nil
}

// At returns the lifted entry at index, or an error if the index is out of
// range or unused (index 0, or the second slot of a wide literal).
func (p *Pool) At(index uint16) (Entry, error) {
	if int(index) >= len(p.entries) || p.entries[index].Kind == KindNone {
		return Entry{}, vmerr.New(vmerr.ErrMalformedDescriptor, "invalid or unused constant pool index %d", index)
	}
	return p.entries[index], nil
}

// UTF8 returns the string value at index, erroring if the entry is not a
// UTF8 literal.
func (p *Pool) UTF8(index uint16) (string, error) {
	e, err := p.At(index)
	if err != nil {
		return "", err
	}
	if e.Kind != KindUTF8 {
		return "", vmerr.New(vmerr.ErrMalformedDescriptor, "constant pool index %d is not UTF8", index)
	}
	return e.UTF8, nil
}
