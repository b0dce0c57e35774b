package vm

import (
	"encoding/binary"

	"github.com/finchvm/finch/pkg/vmerr"
)

// Frame is the activation record for one bytecode method invocation: the
// class it executes against, its code buffer, program counter, local
// variable array, and operand stack.
type Frame struct {
	Class  *Class
	Method *Method
	Code   []byte
	PC     int
	Locals []Value
	Stack  []Value
}

// NewFrame builds a frame with locals sized to MaxLocals, the leading
// slots pre-populated from args in declaration order. Wide args (Long,
// Double) occupy two consecutive slots; the high slot is EmptyValue and
// must never be loaded independently.
func NewFrame(class *Class, method *Method, args []Value) *Frame {
	locals := make([]Value, method.MaxLocals)
	li := 0
	for _, a := range args {
		locals[li] = a
		li++
		if a.IsWide() {
			locals[li] = EmptyValue()
			li++
		}
	}
	for ; li < len(locals); li++ {
		locals[li] = EmptyValue()
	}
	return &Frame{Class: class, Method: method, Code: method.Bytecode, Locals: locals}
}

func (f *Frame) Push(v Value) { f.Stack = append(f.Stack, v) }

func (f *Frame) Pop() (Value, error) {
	n := len(f.Stack)
	if n == 0 {
		return Value{}, vmerr.New(vmerr.ErrStackUnderflow, "pop on empty operand stack")
	}
	v := f.Stack[n-1]
	f.Stack = f.Stack[:n-1]
	return v, nil
}

// PopExpect pops and verifies the value's kind matches one of want.
func (f *Frame) PopExpect(want ...ValueKind) (Value, error) {
	v, err := f.Pop()
	if err != nil {
		return Value{}, err
	}
	for _, k := range want {
		if v.Kind == k {
			return v, nil
		}
	}
	return Value{}, vmerr.New(vmerr.ErrTypeMismatch, "expected one of %v, got %v", want, v.Kind)
}

func (f *Frame) GetLocal(index int, want ...ValueKind) (Value, error) {
	if index < 0 || index >= len(f.Locals) {
		return Value{}, vmerr.New(vmerr.ErrIndexOutOfBounds, "local index %d out of range", index)
	}
	v := f.Locals[index]
	if v.Kind == KindEmpty {
		return Value{}, vmerr.New(vmerr.ErrTypeMismatch, "local %d is the high slot of a wide value", index)
	}
	for _, k := range want {
		if v.Kind == k {
			return v, nil
		}
	}
	if len(want) > 0 {
		return Value{}, vmerr.New(vmerr.ErrTypeMismatch, "local %d: expected one of %v, got %v", index, want, v.Kind)
	}
	return v, nil
}

// SetLocal stores v at index; if v is wide, the following slot is cleared
// to EmptyValue so it can never be loaded as a narrow value.
func (f *Frame) SetLocal(index int, v Value) error {
	if index < 0 || index >= len(f.Locals) {
		return vmerr.New(vmerr.ErrIndexOutOfBounds, "local index %d out of range", index)
	}
	f.Locals[index] = v
	if v.IsWide() {
		if index+1 >= len(f.Locals) {
			return vmerr.New(vmerr.ErrIndexOutOfBounds, "wide local at %d has no high slot", index)
		}
		f.Locals[index+1] = EmptyValue()
	}
	return nil
}

func (f *Frame) ReadU8() uint8 {
	b := f.Code[f.PC]
	f.PC++
	return b
}

func (f *Frame) ReadI8() int8 { return int8(f.ReadU8()) }

func (f *Frame) ReadU16() uint16 {
	v := binary.BigEndian.Uint16(f.Code[f.PC : f.PC+2])
	f.PC += 2
	return v
}

func (f *Frame) ReadI16() int16 { return int16(f.ReadU16()) }

func (f *Frame) ReadU32() uint32 {
	v := binary.BigEndian.Uint32(f.Code[f.PC : f.PC+4])
	f.PC += 4
	return v
}

func (f *Frame) ReadI32() int32 { return int32(f.ReadU32()) }
