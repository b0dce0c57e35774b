package classfile

import (
	"bytes"
	"encoding/binary"
)

// testClassBuilder assembles raw .class bytes for parser tests, standing in
// for checked-in binary fixtures. Only the subset of the format exercised
// by these tests is supported. Constant pool entries must all be staged
// (via the add* helpers) before bytes() is called.
type testClassBuilder struct {
	pool      [][]byte // constant pool entries as raw bytes, 1-based index = position+1
	utf8Idx   map[string]uint16
	thisName  string
	superName string
	methods   []testMethod
}

type testMethod struct {
	name, descriptor string
	accessFlags      uint16
	code             []byte
	maxStack         uint16
	maxLocals        uint16
}

func newTestClassBuilder(thisName, superName string) *testClassBuilder {
	return &testClassBuilder{utf8Idx: map[string]uint16{}, thisName: thisName, superName: superName}
}

func (b *testClassBuilder) addUtf8(s string) uint16 {
	if idx, ok := b.utf8Idx[s]; ok {
		return idx
	}
	var buf bytes.Buffer
	buf.WriteByte(TagUtf8)
	binary.Write(&buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
	b.pool = append(b.pool, buf.Bytes())
	idx := uint16(len(b.pool))
	b.utf8Idx[s] = idx
	return idx
}

func (b *testClassBuilder) addClass(name string) uint16 {
	nameIdx := b.addUtf8(name)
	var buf bytes.Buffer
	buf.WriteByte(TagClass)
	binary.Write(&buf, binary.BigEndian, nameIdx)
	b.pool = append(b.pool, buf.Bytes())
	return uint16(len(b.pool))
}

func (b *testClassBuilder) addNameAndType(name, descriptor string) uint16 {
	nameIdx := b.addUtf8(name)
	descIdx := b.addUtf8(descriptor)
	var buf bytes.Buffer
	buf.WriteByte(TagNameAndType)
	binary.Write(&buf, binary.BigEndian, nameIdx)
	binary.Write(&buf, binary.BigEndian, descIdx)
	b.pool = append(b.pool, buf.Bytes())
	return uint16(len(b.pool))
}

func (b *testClassBuilder) addMethodref(className, name, descriptor string) uint16 {
	classIdx := b.addClass(className)
	natIdx := b.addNameAndType(name, descriptor)
	var buf bytes.Buffer
	buf.WriteByte(TagMethodref)
	binary.Write(&buf, binary.BigEndian, classIdx)
	binary.Write(&buf, binary.BigEndian, natIdx)
	b.pool = append(b.pool, buf.Bytes())
	return uint16(len(b.pool))
}

func (b *testClassBuilder) addFieldref(className, name, descriptor string) uint16 {
	classIdx := b.addClass(className)
	natIdx := b.addNameAndType(name, descriptor)
	var buf bytes.Buffer
	buf.WriteByte(TagFieldref)
	binary.Write(&buf, binary.BigEndian, classIdx)
	binary.Write(&buf, binary.BigEndian, natIdx)
	b.pool = append(b.pool, buf.Bytes())
	return uint16(len(b.pool))
}

func (b *testClassBuilder) addMethod(name, descriptor string, flags uint16, code []byte, maxStack, maxLocals uint16) {
	b.methods = append(b.methods, testMethod{name: name, descriptor: descriptor, accessFlags: flags, code: code, maxStack: maxStack, maxLocals: maxLocals})
}

// bytes stages the this/super class and every method name/descriptor/"Code"
// into the constant pool, then serializes the whole file in one pass so
// that every index written has already been assigned.
func (b *testClassBuilder) bytes() []byte {
	thisIdx := b.addClass(b.thisName)
	superIdx := b.addClass(b.superName)
	codeNameIdx := b.addUtf8("Code")

	methodNameIdx := make([]uint16, len(b.methods))
	methodDescIdx := make([]uint16, len(b.methods))
	for i, m := range b.methods {
		methodNameIdx[i] = b.addUtf8(m.name)
		methodDescIdx[i] = b.addUtf8(m.descriptor)
	}

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(classMagic))
	binary.Write(&out, binary.BigEndian, uint16(0))  // minor
	binary.Write(&out, binary.BigEndian, uint16(61)) // major (Java 17)

	binary.Write(&out, binary.BigEndian, uint16(len(b.pool)+1)) // constant_pool_count
	for _, entry := range b.pool {
		out.Write(entry)
	}

	binary.Write(&out, binary.BigEndian, uint16(AccPublic|AccSuper)) // access_flags
	binary.Write(&out, binary.BigEndian, thisIdx)
	binary.Write(&out, binary.BigEndian, superIdx)
	binary.Write(&out, binary.BigEndian, uint16(0)) // interfaces_count
	binary.Write(&out, binary.BigEndian, uint16(0)) // fields_count

	binary.Write(&out, binary.BigEndian, uint16(len(b.methods)))
	for i, m := range b.methods {
		binary.Write(&out, binary.BigEndian, m.accessFlags)
		binary.Write(&out, binary.BigEndian, methodNameIdx[i])
		binary.Write(&out, binary.BigEndian, methodDescIdx[i])
		binary.Write(&out, binary.BigEndian, uint16(1)) // attributes_count

		var code bytes.Buffer
		binary.Write(&code, binary.BigEndian, m.maxStack)
		binary.Write(&code, binary.BigEndian, m.maxLocals)
		binary.Write(&code, binary.BigEndian, uint32(len(m.code)))
		code.Write(m.code)
		binary.Write(&code, binary.BigEndian, uint16(0)) // exception_table_length
		binary.Write(&code, binary.BigEndian, uint16(0)) // code attributes_count

		binary.Write(&out, binary.BigEndian, codeNameIdx)
		binary.Write(&out, binary.BigEndian, uint32(code.Len()))
		out.Write(code.Bytes())
	}

	binary.Write(&out, binary.BigEndian, uint16(0)) // class attributes_count
	return out.Bytes()
}
