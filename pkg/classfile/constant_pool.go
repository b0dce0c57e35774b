package classfile

import (
	"fmt"
	"math"

	"github.com/finchvm/finch/pkg/vmerr"
)

// readConstantPool reads count-1 tagged entries into a 1-indexed slice.
// Slot 0 and the slot after each Long/Double stay TagNone, per the
// format's reservation rule.
func readConstantPool(r *reader, count uint16) ([]Constant, error) {
	pool := make([]Constant, count)
	for i := uint16(1); i < count; i++ {
		c, wide, err := readConstant(r)
		if err != nil {
			return nil, fmt.Errorf("constant pool entry %d: %w", i, err)
		}
		pool[i] = c
		if wide {
			i++
		}
	}
	return pool, nil
}

// readConstant reads one entry, dispatching on the tag only to pick the
// operand shape; wide reports whether the entry occupies a second slot.
// Tags this tier never resolves (MethodHandle, MethodType, the Dynamic
// family) keep their raw operands so the pool stays index-accurate.
func readConstant(r *reader) (Constant, bool, error) {
	tag := r.u8()
	if err := r.truncated("constant tag"); err != nil {
		return Constant{}, false, err
	}

	c := Constant{Tag: tag}
	wide := false
	switch tag {
	case TagUtf8:
		c.Utf8 = string(r.take(int(r.u16())))
	case TagInteger:
		c.Int = int32(r.u32())
	case TagFloat:
		c.Float = math.Float32frombits(r.u32())
	case TagLong:
		c.Long = int64(r.u32())<<32 | int64(r.u32())
		wide = true
	case TagDouble:
		c.Double = math.Float64frombits(uint64(r.u32())<<32 | uint64(r.u32()))
		wide = true
	case TagClass, TagString, TagMethodType:
		c.A = r.u16()
	case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType,
		TagDynamic, TagInvokeDynamic:
		c.A = r.u16()
		c.B = r.u16()
	case TagMethodHandle:
		c.A = uint16(r.u8())
		c.B = r.u16()
	default:
		return Constant{}, false, vmerr.New(vmerr.ErrUnknownConstantTag, "tag %d", tag)
	}
	if err := r.truncated("constant operands"); err != nil {
		return Constant{}, false, err
	}
	return c, wide, nil
}

// constantAt returns the entry at a 1-based index, rejecting slot 0 and
// the unused second slot of a wide entry.
func (cf *ClassFile) constantAt(index uint16) (Constant, error) {
	if index == 0 || int(index) >= len(cf.ConstantPool) {
		return Constant{}, fmt.Errorf("constant pool index %d out of range", index)
	}
	c := cf.ConstantPool[index]
	if c.Tag == TagNone {
		return Constant{}, fmt.Errorf("constant pool index %d is an unused slot", index)
	}
	return c, nil
}

// Utf8At returns the text of the Utf8 entry at index.
func (cf *ClassFile) Utf8At(index uint16) (string, error) {
	c, err := cf.constantAt(index)
	if err != nil {
		return "", err
	}
	if c.Tag != TagUtf8 {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag=%d)", index, c.Tag)
	}
	return c.Utf8, nil
}

// ClassNameAt follows a Class entry to its name.
func (cf *ClassFile) ClassNameAt(index uint16) (string, error) {
	c, err := cf.constantAt(index)
	if err != nil {
		return "", err
	}
	if c.Tag != TagClass {
		return "", fmt.Errorf("constant pool index %d is not a Class entry (tag=%d)", index, c.Tag)
	}
	return cf.Utf8At(c.A)
}

// NameAndTypeAt unpacks a NameAndType entry into its name and descriptor.
func (cf *ClassFile) NameAndTypeAt(index uint16) (string, string, error) {
	c, err := cf.constantAt(index)
	if err != nil {
		return "", "", err
	}
	if c.Tag != TagNameAndType {
		return "", "", fmt.Errorf("constant pool index %d is not NameAndType (tag=%d)", index, c.Tag)
	}
	name, err := cf.Utf8At(c.A)
	if err != nil {
		return "", "", err
	}
	descriptor, err := cf.Utf8At(c.B)
	if err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// ClassName returns the fully qualified name of the class this file
// defines.
func (cf *ClassFile) ClassName() (string, error) {
	return cf.ClassNameAt(cf.ThisClass)
}
