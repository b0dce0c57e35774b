package vm

import (
	"bytes"
	"encoding/binary"

	"github.com/finchvm/finch/pkg/classfile"
)

// testClassWriter assembles raw .class bytes for loader and end-to-end
// tests; this package sits downstream of classfile and cannot reach its
// test-only builder. Constant pool entries are staged eagerly, so the
// indices the add* helpers return can be embedded in bytecode before
// bytes() is called.
type testClassWriter struct {
	pool      [][]byte
	utf8Idx   map[string]uint16
	thisName  string
	superName string
	fields    []writerField
	methods   []writerMethod
}

type writerField struct {
	name, descriptor string
	flags            uint16
	constValue       uint16 // pool index of a ConstantValue, 0 for none
}

type writerMethod struct {
	name, descriptor    string
	flags               uint16
	code                []byte // nil for native methods
	maxStack, maxLocals uint16
}

func newTestClassWriter(thisName, superName string) *testClassWriter {
	return &testClassWriter{utf8Idx: map[string]uint16{}, thisName: thisName, superName: superName}
}

func (w *testClassWriter) addUtf8(s string) uint16 {
	if idx, ok := w.utf8Idx[s]; ok {
		return idx
	}
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagUtf8)
	binary.Write(&buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
	w.pool = append(w.pool, buf.Bytes())
	idx := uint16(len(w.pool))
	w.utf8Idx[s] = idx
	return idx
}

func (w *testClassWriter) addClass(name string) uint16 {
	nameIdx := w.addUtf8(name)
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagClass)
	binary.Write(&buf, binary.BigEndian, nameIdx)
	w.pool = append(w.pool, buf.Bytes())
	return uint16(len(w.pool))
}

func (w *testClassWriter) addInteger(v int32) uint16 {
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagInteger)
	binary.Write(&buf, binary.BigEndian, v)
	w.pool = append(w.pool, buf.Bytes())
	return uint16(len(w.pool))
}

func (w *testClassWriter) addNameAndType(name, descriptor string) uint16 {
	nameIdx := w.addUtf8(name)
	descIdx := w.addUtf8(descriptor)
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagNameAndType)
	binary.Write(&buf, binary.BigEndian, nameIdx)
	binary.Write(&buf, binary.BigEndian, descIdx)
	w.pool = append(w.pool, buf.Bytes())
	return uint16(len(w.pool))
}

func (w *testClassWriter) addFieldref(className, name, descriptor string) uint16 {
	classIdx := w.addClass(className)
	natIdx := w.addNameAndType(name, descriptor)
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagFieldref)
	binary.Write(&buf, binary.BigEndian, classIdx)
	binary.Write(&buf, binary.BigEndian, natIdx)
	w.pool = append(w.pool, buf.Bytes())
	return uint16(len(w.pool))
}

func (w *testClassWriter) addMethodref(className, name, descriptor string) uint16 {
	classIdx := w.addClass(className)
	natIdx := w.addNameAndType(name, descriptor)
	var buf bytes.Buffer
	buf.WriteByte(classfile.TagMethodref)
	binary.Write(&buf, binary.BigEndian, classIdx)
	binary.Write(&buf, binary.BigEndian, natIdx)
	w.pool = append(w.pool, buf.Bytes())
	return uint16(len(w.pool))
}

func (w *testClassWriter) addField(name, descriptor string, flags uint16) {
	w.fields = append(w.fields, writerField{name: name, descriptor: descriptor, flags: flags})
}

func (w *testClassWriter) addConstField(name, descriptor string, flags uint16, constValueIdx uint16) {
	w.fields = append(w.fields, writerField{name: name, descriptor: descriptor, flags: flags, constValue: constValueIdx})
}

func (w *testClassWriter) addMethod(name, descriptor string, flags uint16, code []byte, maxStack, maxLocals uint16) {
	w.methods = append(w.methods, writerMethod{
		name: name, descriptor: descriptor, flags: flags,
		code: code, maxStack: maxStack, maxLocals: maxLocals,
	})
}

func (w *testClassWriter) addNativeMethod(name, descriptor string, flags uint16) {
	w.methods = append(w.methods, writerMethod{name: name, descriptor: descriptor, flags: flags | classfile.AccNative})
}

func (w *testClassWriter) bytes() []byte {
	thisIdx := w.addClass(w.thisName)
	superIdx := w.addClass(w.superName)
	codeNameIdx := w.addUtf8("Code")
	cvNameIdx := w.addUtf8("ConstantValue")

	fieldNameIdx := make([]uint16, len(w.fields))
	fieldDescIdx := make([]uint16, len(w.fields))
	for i, f := range w.fields {
		fieldNameIdx[i] = w.addUtf8(f.name)
		fieldDescIdx[i] = w.addUtf8(f.descriptor)
	}
	methodNameIdx := make([]uint16, len(w.methods))
	methodDescIdx := make([]uint16, len(w.methods))
	for i, m := range w.methods {
		methodNameIdx[i] = w.addUtf8(m.name)
		methodDescIdx[i] = w.addUtf8(m.descriptor)
	}

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(0xCAFEBABE))
	binary.Write(&out, binary.BigEndian, uint16(0))  // minor
	binary.Write(&out, binary.BigEndian, uint16(61)) // major

	binary.Write(&out, binary.BigEndian, uint16(len(w.pool)+1))
	for _, entry := range w.pool {
		out.Write(entry)
	}

	binary.Write(&out, binary.BigEndian, uint16(classfile.AccPublic|classfile.AccSuper))
	binary.Write(&out, binary.BigEndian, thisIdx)
	binary.Write(&out, binary.BigEndian, superIdx)
	binary.Write(&out, binary.BigEndian, uint16(0)) // interfaces_count

	binary.Write(&out, binary.BigEndian, uint16(len(w.fields)))
	for i, f := range w.fields {
		binary.Write(&out, binary.BigEndian, f.flags)
		binary.Write(&out, binary.BigEndian, fieldNameIdx[i])
		binary.Write(&out, binary.BigEndian, fieldDescIdx[i])
		if f.constValue == 0 {
			binary.Write(&out, binary.BigEndian, uint16(0)) // attributes_count
			continue
		}
		binary.Write(&out, binary.BigEndian, uint16(1))
		binary.Write(&out, binary.BigEndian, cvNameIdx)
		binary.Write(&out, binary.BigEndian, uint32(2))
		binary.Write(&out, binary.BigEndian, f.constValue)
	}

	binary.Write(&out, binary.BigEndian, uint16(len(w.methods)))
	for i, m := range w.methods {
		binary.Write(&out, binary.BigEndian, m.flags)
		binary.Write(&out, binary.BigEndian, methodNameIdx[i])
		binary.Write(&out, binary.BigEndian, methodDescIdx[i])
		if m.code == nil {
			binary.Write(&out, binary.BigEndian, uint16(0)) // native: no attributes
			continue
		}
		binary.Write(&out, binary.BigEndian, uint16(1))

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
