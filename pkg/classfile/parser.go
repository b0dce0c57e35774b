package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/finchvm/finch/pkg/vmerr"
)

const classMagic = 0xCAFEBABE

// reader decodes the big-endian scalar fields of the class format with a
// sticky error, so a run of reads needs only one check at the end.
type reader struct {
	src io.Reader
	err error
}

func newReader(src io.Reader) *reader { return &reader{src: src} }

func (r *reader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	var buf [1]byte
	_, r.err = io.ReadFull(r.src, buf[:])
	return buf[0]
}

func (r *reader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	var buf [2]byte
	_, r.err = io.ReadFull(r.src, buf[:])
	return binary.BigEndian.Uint16(buf[:])
}

func (r *reader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	var buf [4]byte
	_, r.err = io.ReadFull(r.src, buf[:])
	return binary.BigEndian.Uint32(buf[:])
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	buf := make([]byte, n)
	_, r.err = io.ReadFull(r.src, buf)
	return buf
}

// truncated converts the reader's sticky error into the TruncatedClass
// load-error kind, tagged with the section being read.
func (r *reader) truncated(section string) error {
	if r.err == nil {
		return nil
	}
	return vmerr.New(vmerr.ErrTruncatedClass, "reading %s: %v", section, r.err)
}

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a .class file from the given reader and returns a ClassFile.
func Parse(src io.Reader) (*ClassFile, error) {
	r := newReader(src)

	magic := r.u32()
	if err := r.truncated("magic number"); err != nil {
		return nil, err
	}
	if magic != classMagic {
		return nil, vmerr.New(vmerr.ErrBadMagic, "0x%X (expected 0xCAFEBABE)", magic)
	}

	cf := &ClassFile{
		MinorVersion: r.u16(),
		MajorVersion: r.u16(),
	}
	cpCount := r.u16()
	if err := r.truncated("header"); err != nil {
		return nil, err
	}

	pool, err := readConstantPool(r, cpCount)
	if err != nil {
		return nil, err
	}
	cf.ConstantPool = pool

	cf.AccessFlags = r.u16()
	cf.ThisClass = r.u16()
	cf.SuperClass = r.u16()
	cf.Interfaces = make([]uint16, r.u16())
	for i := range cf.Interfaces {
		cf.Interfaces[i] = r.u16()
	}
	if err := r.truncated("class info"); err != nil {
		return nil, err
	}

	fieldCount := r.u16()
	if err := r.truncated("field count"); err != nil {
		return nil, err
	}
	cf.Fields = make([]FieldInfo, fieldCount)
	for i := range cf.Fields {
		m, err := readMember(r, cf)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		fi := FieldInfo{AccessFlags: m.access, Name: m.name, Descriptor: m.descriptor, Attributes: m.attrs}
		for _, a := range m.attrs {
			if a.Name == "ConstantValue" && len(a.Data) >= 2 {
				fi.ConstantValueIndex = binary.BigEndian.Uint16(a.Data[:2])
				break
			}
		}
		cf.Fields[i] = fi
	}

	methodCount := r.u16()
	if err := r.truncated("method count"); err != nil {
		return nil, err
	}
	cf.Methods = make([]MethodInfo, methodCount)
	for i := range cf.Methods {
		m, err := readMember(r, cf)
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		mi := MethodInfo{AccessFlags: m.access, Name: m.name, Descriptor: m.descriptor, Attributes: m.attrs}
		for _, a := range m.attrs {
			if a.Name != "Code" {
				continue
			}
			code, err := parseCodeAttribute(a.Data)
			if err != nil {
				return nil, fmt.Errorf("method %s: %w", m.name, err)
			}
			mi.Code = code
			break
		}
		cf.Methods[i] = mi
	}

	cf.Attributes, err = readAttributes(r, cf)
	if err != nil {
		return nil, err
	}

	return cf, nil
}

// member is the {access, name, descriptor, attributes} shape fields and
// methods share.
type member struct {
	access           uint16
	name, descriptor string
	attrs            []AttributeInfo
}

// readMember reads one field_info/method_info header, resolving the name
// and descriptor indices eagerly so downstream code never re-derefs them.
func readMember(r *reader, cf *ClassFile) (member, error) {
	var m member
	m.access = r.u16()
	nameIdx := r.u16()
	descIdx := r.u16()
	if err := r.truncated("member header"); err != nil {
		return member{}, err
	}
	var err error
	if m.name, err = cf.Utf8At(nameIdx); err != nil {
		return member{}, err
	}
	if m.descriptor, err = cf.Utf8At(descIdx); err != nil {
		return member{}, err
	}
	if m.attrs, err = readAttributes(r, cf); err != nil {
		return member{}, err
	}
	return m, nil
}

// readAttributes reads an attribute table, resolving each name but keeping
// every body opaque. Code and ConstantValue are given structure by the
// member loops above; everything else stays raw name+bytes.
func readAttributes(r *reader, cf *ClassFile) ([]AttributeInfo, error) {
	count := r.u16()
	if err := r.truncated("attribute count"); err != nil {
		return nil, err
	}
	attrs := make([]AttributeInfo, count)
	for i := range attrs {
		nameIdx := r.u16()
		length := r.u32()
		if err := r.truncated("attribute header"); err != nil {
			return nil, err
		}
		name, err := cf.Utf8At(nameIdx)
		if err != nil {
			return nil, fmt.Errorf("attribute %d: %w", i, err)
		}
		data := r.take(int(length))
		if err := r.truncated("attribute " + name); err != nil {
			return nil, err
		}
		attrs[i] = AttributeInfo{Name: name, Data: data}
	}
	return attrs, nil
}

// parseCodeAttribute decodes the structural parts of a Code attribute:
// stack/local sizes, the code bytes, and the exception table. Nested
// attributes (LineNumberTable and friends) are left unread.
func parseCodeAttribute(data []byte) (*CodeAttribute, error) {
	r := newReader(bytes.NewReader(data))
	ca := &CodeAttribute{
		MaxStack:  r.u16(),
		MaxLocals: r.u16(),
	}
	ca.Code = r.take(int(r.u32()))
	handlerCount := r.u16()
	if err := r.truncated("Code attribute"); err != nil {
		return nil, err
	}
	ca.ExceptionHandlers = make([]ExceptionHandler, handlerCount)
	for i := range ca.ExceptionHandlers {
		ca.ExceptionHandlers[i] = ExceptionHandler{
			StartPC:   r.u16(),
			EndPC:     r.u16(),
			HandlerPC: r.u16(),
			CatchType: r.u16(),
		}
	}
	if err := r.truncated("exception table"); err != nil {
		return nil, err
	}
	return ca, nil
}
