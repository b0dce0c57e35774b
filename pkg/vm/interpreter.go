package vm

import (
	"math"

	"github.com/finchvm/finch/pkg/rtpool"
	"github.com/finchvm/finch/pkg/sig"
	"github.com/finchvm/finch/pkg/vmerr"
)

// run drives the decode-dispatch loop for one frame until a return opcode
// terminates it. The second result is false for void returns.
func (vm *VM) run(f *Frame) (Value, bool, error) {
	for {
		opcodeAddr := f.PC
		op := f.ReadU8()

		switch op {
		case opNop:
			// no-op

		case opAConstNull:
			f.Push(NullValue())
		case opIConstM1, opIConst0, opIConst1, opIConst2, opIConst3, opIConst4, opIConst5:
			f.Push(IntValue(int32(op) - int32(opIConst0)))
		case opLConst0, opLConst1:
			f.Push(LongValue(int64(op - opLConst0)))
		case opFConst0, opFConst1, opFConst2:
			f.Push(FloatValue(float32(op - opFConst0)))
		case opDConst0, opDConst1:
			f.Push(DoubleValue(float64(op - opDConst0)))
		case opBipush:
			f.Push(IntValue(int32(f.ReadI8())))
		case opSipush:
			f.Push(IntValue(int32(f.ReadI16())))

		case opLdc:
			if err := vm.execLdc(f, uint16(f.ReadU8())); err != nil {
				return Value{}, false, err
			}
		case opLdcW, opLdc2W:
			if err := vm.execLdc(f, f.ReadU16()); err != nil {
				return Value{}, false, err
			}

		case opILoad, opFLoad, opALoad:
			idx := int(f.ReadU8())
			if err := loadLocal(f, idx, kindsFor(op)); err != nil {
				return Value{}, false, err
			}
		case opLLoad, opDLoad:
			idx := int(f.ReadU8())
			if err := loadLocal(f, idx, kindsFor(op)); err != nil {
				return Value{}, false, err
			}
		case opILoad0, opILoad1, opILoad2, opILoad3:
			if err := loadLocal(f, int(op-opILoad0), []ValueKind{KindInt}); err != nil {
				return Value{}, false, err
			}
		case opLLoad0, opLLoad1, opLLoad2, opLLoad3:
			if err := loadLocal(f, int(op-opLLoad0), []ValueKind{KindLong}); err != nil {
				return Value{}, false, err
			}
		case opFLoad0, opFLoad1, opFLoad2, opFLoad3:
			if err := loadLocal(f, int(op-opFLoad0), []ValueKind{KindFloat}); err != nil {
				return Value{}, false, err
			}
		case opDLoad0, opDLoad1, opDLoad2, opDLoad3:
			if err := loadLocal(f, int(op-opDLoad0), []ValueKind{KindDouble}); err != nil {
				return Value{}, false, err
			}
		case opALoad0, opALoad1, opALoad2, opALoad3:
			if err := loadLocal(f, int(op-opALoad0), []ValueKind{KindReference, KindArrayReference, KindNull}); err != nil {
				return Value{}, false, err
			}

		case opIStore, opFStore, opAStore:
			idx := int(f.ReadU8())
			if err := storeLocal(f, idx); err != nil {
				return Value{}, false, err
			}
		case opLStore, opDStore:
			idx := int(f.ReadU8())
			if err := storeLocal(f, idx); err != nil {
				return Value{}, false, err
			}
		case opIStore0, opIStore1, opIStore2, opIStore3:
			if err := storeLocal(f, int(op-opIStore0)); err != nil {
				return Value{}, false, err
			}
		case opLStore0, opLStore1, opLStore2, opLStore3:
			if err := storeLocal(f, int(op-opLStore0)); err != nil {
				return Value{}, false, err
			}
		case opFStore0, opFStore1, opFStore2, opFStore3:
			if err := storeLocal(f, int(op-opFStore0)); err != nil {
				return Value{}, false, err
			}
		case opDStore0, opDStore1, opDStore2, opDStore3:
			if err := storeLocal(f, int(op-opDStore0)); err != nil {
				return Value{}, false, err
			}
		case opAStore0, opAStore1, opAStore2, opAStore3:
			if err := storeLocal(f, int(op-opAStore0)); err != nil {
				return Value{}, false, err
			}

		case opIALoad, opLALoad, opFALoad, opDALoad, opAALoad, opBALoad, opCALoad, opSALoad:
			if err := execArrayLoad(f); err != nil {
				return Value{}, false, err
			}
		case opIAStore, opLAStore, opFAStore, opDAStore, opAAStore, opBAStore, opCAStore, opSAStore:
			if err := execArrayStore(f); err != nil {
				return Value{}, false, err
			}

		case opPop:
			if _, err := f.Pop(); err != nil {
				return Value{}, false, err
			}
		case opPop2:
			if err := execPop2(f); err != nil {
				return Value{}, false, err
			}
		case opDup:
			if err := execDup(f); err != nil {
				return Value{}, false, err
			}
		case opDupX1:
			if err := execDupX1(f); err != nil {
				return Value{}, false, err
			}
		case opDupX2:
			if err := execDupX2(f); err != nil {
				return Value{}, false, err
			}
		case opDup2:
			if err := execDup2(f); err != nil {
				return Value{}, false, err
			}
		case opDup2X1:
			if err := execDup2X1(f); err != nil {
				return Value{}, false, err
			}
		case opDup2X2:
			if err := execDup2X2(f); err != nil {
				return Value{}, false, err
			}
		case opSwap:
			a, err := f.Pop()
			if err != nil {
				return Value{}, false, err
			}
			b, err := f.Pop()
			if err != nil {
				return Value{}, false, err
			}
			f.Push(a)
			f.Push(b)

		case opIAdd, opISub, opIMul, opIDiv, opIRem, opINeg,
			opLAdd, opLSub, opLMul, opLDiv, opLRem, opLNeg,
			opFAdd, opFSub, opFMul, opFDiv, opFRem, opFNeg,
			opDAdd, opDSub, opDMul, opDDiv, opDRem, opDNeg:
			if err := execArith(f, op); err != nil {
				return Value{}, false, err
			}

		case opIShl, opIShr, opIUShr, opIAnd, opIOr, opIXor,
			opLShl, opLShr, opLUShr, opLAnd, opLOr, opLXor:
			if err := execBitwise(f, op); err != nil {
				return Value{}, false, err
			}

		case opIInc:
			idx := int(f.ReadU8())
			delta := int32(f.ReadI8())
			v, err := f.GetLocal(idx, KindInt)
			if err != nil {
				return Value{}, false, err
			}
			if err := f.SetLocal(idx, IntValue(v.Int+delta)); err != nil {
				return Value{}, false, err
			}

		case opI2L, opI2F, opI2D, opI2B, opI2C, opI2S,
			opL2I, opL2F, opL2D,
			opF2I, opF2L, opF2D,
			opD2I, opD2L, opD2F:
			if err := execConvert(f, op); err != nil {
				return Value{}, false, err
			}

		case opLCmp, opFCmpL, opFCmpG, opDCmpL, opDCmpG:
			if err := execCompare(f, op); err != nil {
				return Value{}, false, err
			}

		case opIfEq, opIfNe, opIfLt, opIfGe, opIfGt, opIfLe:
			taken, target, err := evalUnaryBranch(f, op, opcodeAddr)
			if err != nil {
				return Value{}, false, err
			}
			if taken {
				f.PC = target
			}
		case opIfICmpEq, opIfICmpNe, opIfICmpLt, opIfICmpGe, opIfICmpGt, opIfICmpLe:
			taken, target, err := evalBinaryBranch(f, op, opcodeAddr)
			if err != nil {
				return Value{}, false, err
			}
			if taken {
				f.PC = target
			}
		case opGoto:
			offset := int(f.ReadI16())
			f.PC = opcodeAddr + offset

		case opTableSwitch:
			target, err := execTableSwitch(f, opcodeAddr)
			if err != nil {
				return Value{}, false, err
			}
			f.PC = target
		case opLookupSwitch:
			target, err := execLookupSwitch(f, opcodeAddr)
			if err != nil {
				return Value{}, false, err
			}
			f.PC = target

		case opIReturn, opFReturn, opDReturn, opLReturn, opAReturn:
			return popReturnValue(f)
		case opReturn:
			return Value{}, false, nil

		case opGetStatic:
			if err := vm.execGetStatic(f); err != nil {
				return Value{}, false, err
			}
		case opPutStatic:
			if err := vm.execPutStatic(f); err != nil {
				return Value{}, false, err
			}
		case opGetField:
			if err := vm.execGetField(f); err != nil {
				return Value{}, false, err
			}
		case opPutField:
			if err := vm.execPutField(f); err != nil {
				return Value{}, false, err
			}

		case opInvokeVirtual, opInvokeSpecial, opInvokeStatic:
			if err := vm.execInvoke(f, op); err != nil {
				return Value{}, false, err
			}

		case opNew:
			if err := vm.execNew(f); err != nil {
				return Value{}, false, err
			}
		case opNewArray:
			if err := execNewArray(f); err != nil {
				return Value{}, false, err
			}
		case opANewArray:
			if err := vm.execANewArray(f); err != nil {
				return Value{}, false, err
			}
		case opArrayLength:
			v, err := f.PopExpect(KindArrayReference)
			if err != nil {
				return Value{}, false, err
			}
			f.Push(IntValue(int32(v.Arr.Length())))

		default:
			return Value{}, false, vmerr.New(vmerr.ErrUnsupportedOpcode, "opcode 0x%02x at pc=%d", op, opcodeAddr).
				AtFrame(f.Class.Sig.String(), f.Method.Sig.Key(), "", opcodeAddr)
		}
	}
}

func kindsFor(op uint8) []ValueKind {
	switch op {
	case opILoad, opILoad0, opILoad1, opILoad2, opILoad3:
		return []ValueKind{KindInt}
	case opFLoad, opFLoad0, opFLoad1, opFLoad2, opFLoad3:
		return []ValueKind{KindFloat}
	case opALoad, opALoad0, opALoad1, opALoad2, opALoad3:
		return []ValueKind{KindReference, KindArrayReference, KindNull}
	default:
		return nil
	}
}

func loadLocal(f *Frame, idx int, want []ValueKind) error {
	v, err := f.GetLocal(idx, want...)
	if err != nil {
		return err
	}
	f.Push(v)
	return nil
}

func storeLocal(f *Frame, idx int) error {
	v, err := f.Pop()
	if err != nil {
		return err
	}
	return f.SetLocal(idx, v)
}

func popReturnValue(f *Frame) (Value, bool, error) {
	v, err := f.Pop()
	if err != nil {
		return Value{}, false, err
	}
	return v, true, nil
}

// execLdc resolves a constant pool literal (LDC/LDC_W/LDC2_W) and pushes it.
func (vm *VM) execLdc(f *Frame, index uint16) error {
	entry, err := f.Class.Pool.At(index)
	if err != nil {
		return err
	}
	switch entry.Kind {
	case rtpool.KindIntLiteral:
		f.Push(IntValue(entry.IntVal))
	case rtpool.KindLongLiteral:
		f.Push(LongValue(entry.LongVal))
	case rtpool.KindFloatLiteral:
		f.Push(FloatValue(entry.FloatVal))
	case rtpool.KindDoubleLiteral:
		f.Push(DoubleValue(entry.DoubleVal))
	case rtpool.KindStringLiteral:
		f.Push(RefValue(vm.newStringObject(entry.StringVal)))
	case rtpool.KindClassRef:
		// Class literals (Foo.class) are not modeled; not exercised by
		// the spec's scenario suite.
		return vmerr.New(vmerr.ErrUnsupportedOpcode, "LDC of a class literal is not supported")
	default:
		return vmerr.New(vmerr.ErrMalformedDescriptor, "constant pool index %d is not LDC-able", index)
	}
	return nil
}

func execArrayLoad(f *Frame) error {
	idx, err := f.PopExpect(KindInt)
	if err != nil {
		return err
	}
	arrVal, err := f.PopExpect(KindArrayReference)
	if err != nil {
		return err
	}
	arr := arrVal.Arr
	if int(idx.Int) < 0 || int(idx.Int) >= arr.Length() {
		return vmerr.New(vmerr.ErrIndexOutOfBounds, "array index %d, length %d", idx.Int, arr.Length())
	}
	f.Push(arr.Elements[idx.Int])
	return nil
}

func execArrayStore(f *Frame) error {
	val, err := f.Pop()
	if err != nil {
		return err
	}
	idx, err := f.PopExpect(KindInt)
	if err != nil {
		return err
	}
	arrVal, err := f.PopExpect(KindArrayReference)
	if err != nil {
		return err
	}
	arr := arrVal.Arr
	if int(idx.Int) < 0 || int(idx.Int) >= arr.Length() {
		return vmerr.New(vmerr.ErrIndexOutOfBounds, "array index %d, length %d", idx.Int, arr.Length())
	}
	arr.Elements[idx.Int] = val
	return nil
}

func execPop2(f *Frame) error {
	v, err := f.Pop()
	if err != nil {
		return err
	}
	if v.IsWide() {
		return nil
	}
	_, err = f.Pop()
	return err
}

func execDup(f *Frame) error {
	v, err := f.Pop()
	if err != nil {
		return err
	}
	f.Push(v)
	f.Push(v)
	return nil
}

func execDupX1(f *Frame) error {
	v1, err := f.Pop()
	if err != nil {
		return err
	}
	v2, err := f.Pop()
	if err != nil {
		return err
	}
	f.Push(v1)
	f.Push(v2)
	f.Push(v1)
	return nil
}

func execDupX2(f *Frame) error {
	v1, err := f.Pop()
	if err != nil {
		return err
	}
	v2, err := f.Pop()
	if err != nil {
		return err
	}
	if v2.IsWide() {
		f.Push(v1)
		f.Push(v2)
		f.Push(v1)
		return nil
	}
	v3, err := f.Pop()
	if err != nil {
		return err
	}
	f.Push(v1)
	f.Push(v3)
	f.Push(v2)
	f.Push(v1)
	return nil
}

func execDup2(f *Frame) error {
	v1, err := f.Pop()
	if err != nil {
		return err
	}
	if v1.IsWide() {
		f.Push(v1)
		f.Push(v1)
		return nil
	}
	v2, err := f.Pop()
	if err != nil {
		return err
	}
	f.Push(v2)
	f.Push(v1)
	f.Push(v2)
	f.Push(v1)
	return nil
}

func execDup2X1(f *Frame) error {
	v1, err := f.Pop()
	if err != nil {
		return err
	}
	if v1.IsWide() {
		v2, err := f.Pop()
		if err != nil {
			return err
		}
		f.Push(v1)
		f.Push(v2)
		f.Push(v1)
		return nil
	}
	v2, err := f.Pop()
	if err != nil {
		return err
	}
	v3, err := f.Pop()
	if err != nil {
		return err
	}
	f.Push(v2)
	f.Push(v1)
	f.Push(v3)
	f.Push(v2)
	f.Push(v1)
	return nil
}

func execDup2X2(f *Frame) error {
	v1, err := f.Pop()
	if err != nil {
		return err
	}
	v2, err := f.Pop()
	if err != nil {
		return err
	}
	if v1.IsWide() && v2.IsWide() {
		f.Push(v1)
		f.Push(v2)
		f.Push(v1)
		return nil
	}
	if v1.IsWide() {
		v3, err := f.Pop()
		if err != nil {
			return err
		}
		f.Push(v1)
		f.Push(v3)
		f.Push(v2)
		f.Push(v1)
		return nil
	}
	v3, err := f.Pop()
	if err != nil {
		return err
	}
	if v3.IsWide() {
		f.Push(v2)
		f.Push(v1)
		f.Push(v3)
		f.Push(v2)
		f.Push(v1)
		return nil
	}
	v4, err := f.Pop()
	if err != nil {
		return err
	}
	f.Push(v2)
	f.Push(v1)
	f.Push(v4)
	f.Push(v3)
	f.Push(v2)
	f.Push(v1)
	return nil
}

func execArith(f *Frame, op uint8) error {
	switch op {
	case opIAdd, opISub, opIMul, opIDiv, opIRem:
		b, err := f.PopExpect(KindInt)
		if err != nil {
			return err
		}
		a, err := f.PopExpect(KindInt)
		if err != nil {
			return err
		}
		var r int32
		switch op {
		case opIAdd:
			r = a.Int + b.Int
		case opISub:
			r = a.Int - b.Int
		case opIMul:
			r = a.Int * b.Int
		case opIDiv:
			if b.Int == 0 {
				return vmerr.New(vmerr.ErrTypeMismatch, "division by zero")
			}
			r = a.Int / b.Int
		case opIRem:
			if b.Int == 0 {
				return vmerr.New(vmerr.ErrTypeMismatch, "division by zero")
			}
			r = a.Int % b.Int
		}
		f.Push(IntValue(r))
	case opINeg:
		a, err := f.PopExpect(KindInt)
		if err != nil {
			return err
		}
		f.Push(IntValue(-a.Int))

	case opLAdd, opLSub, opLMul, opLDiv, opLRem:
		b, err := f.PopExpect(KindLong)
		if err != nil {
			return err
		}
		a, err := f.PopExpect(KindLong)
		if err != nil {
			return err
		}
		var r int64
		switch op {
		case opLAdd:
			r = a.Long + b.Long
		case opLSub:
			r = a.Long - b.Long
		case opLMul:
			r = a.Long * b.Long
		case opLDiv:
			if b.Long == 0 {
				return vmerr.New(vmerr.ErrTypeMismatch, "division by zero")
			}
			r = a.Long / b.Long
		case opLRem:
			if b.Long == 0 {
				return vmerr.New(vmerr.ErrTypeMismatch, "division by zero")
			}
			r = a.Long % b.Long
		}
		f.Push(LongValue(r))
	case opLNeg:
		a, err := f.PopExpect(KindLong)
		if err != nil {
			return err
		}
		f.Push(LongValue(-a.Long))

	case opFAdd, opFSub, opFMul, opFDiv, opFRem:
		b, err := f.PopExpect(KindFloat)
		if err != nil {
			return err
		}
		a, err := f.PopExpect(KindFloat)
		if err != nil {
			return err
		}
		var r float32
		switch op {
		case opFAdd:
			r = a.Float + b.Float
		case opFSub:
			r = a.Float - b.Float
		case opFMul:
			r = a.Float * b.Float
		case opFDiv:
			r = a.Float / b.Float
		case opFRem:
			// Truncated remainder (fmod) with the sign of the dividend,
			// not the IEEE-754 round-to-nearest remainder.
			r = float32(math.Mod(float64(a.Float), float64(b.Float)))
		}
		f.Push(FloatValue(r))
	case opFNeg:
		a, err := f.PopExpect(KindFloat)
		if err != nil {
			return err
		}
		f.Push(FloatValue(-a.Float))

	case opDAdd, opDSub, opDMul, opDDiv, opDRem:
		b, err := f.PopExpect(KindDouble)
		if err != nil {
			return err
		}
		a, err := f.PopExpect(KindDouble)
		if err != nil {
			return err
		}
		var r float64
		switch op {
		case opDAdd:
			r = a.Double + b.Double
		case opDSub:
			r = a.Double - b.Double
		case opDMul:
			r = a.Double * b.Double
		case opDDiv:
			r = a.Double / b.Double
		case opDRem:
			r = math.Mod(a.Double, b.Double)
		}
		f.Push(DoubleValue(r))
	case opDNeg:
		a, err := f.PopExpect(KindDouble)
		if err != nil {
			return err
		}
		f.Push(DoubleValue(-a.Double))
	}
	return nil
}

func execBitwise(f *Frame, op uint8) error {
	switch op {
	case opIShl, opIShr, opIUShr, opIAnd, opIOr, opIXor:
		b, err := f.PopExpect(KindInt)
		if err != nil {
			return err
		}
		a, err := f.PopExpect(KindInt)
		if err != nil {
			return err
		}
		var r int32
		switch op {
		case opIShl:
			r = a.Int << (uint32(b.Int) & 0x1F)
		case opIShr:
			r = a.Int >> (uint32(b.Int) & 0x1F)
		case opIUShr:
			// Logical (zero-fill) right shift via unsigned reinterpret.
			// The original source appears to shift left here; this is
			// a known likely bug, corrected per the spec's explicit
			// "use real right shift" guidance.
			r = int32(uint32(a.Int) >> (uint32(b.Int) & 0x1F))
		case opIAnd:
			r = a.Int & b.Int
		case opIOr:
			r = a.Int | b.Int
		case opIXor:
			r = a.Int ^ b.Int
		}
		f.Push(IntValue(r))
	case opLShl, opLShr, opLUShr, opLAnd, opLOr, opLXor:
		var shiftAmt int32
		var b Value
		var err error
		if op == opLShl || op == opLShr || op == opLUShr {
			b, err = f.PopExpect(KindInt)
			if err != nil {
				return err
			}
			shiftAmt = b.Int
		} else {
			b, err = f.PopExpect(KindLong)
			if err != nil {
				return err
			}
		}
		a, err := f.PopExpect(KindLong)
		if err != nil {
			return err
		}
		var r int64
		switch op {
		case opLShl:
			r = a.Long << (uint64(shiftAmt) & 0x3F)
		case opLShr:
			r = a.Long >> (uint64(shiftAmt) & 0x3F)
		case opLUShr:
			r = int64(uint64(a.Long) >> (uint64(shiftAmt) & 0x3F))
		case opLAnd:
			r = a.Long & b.Long
		case opLOr:
			r = a.Long | b.Long
		case opLXor:
			r = a.Long ^ b.Long
		}
		f.Push(LongValue(r))
	}
	return nil
}

func execConvert(f *Frame, op uint8) error {
	switch op {
	case opI2L:
		v, err := f.PopExpect(KindInt)
		if err != nil {
			return err
		}
		f.Push(LongValue(int64(v.Int)))
	case opI2F:
		v, err := f.PopExpect(KindInt)
		if err != nil {
			return err
		}
		f.Push(FloatValue(float32(v.Int)))
	case opI2D:
		v, err := f.PopExpect(KindInt)
		if err != nil {
			return err
		}
		f.Push(DoubleValue(float64(v.Int)))
	case opI2B:
		v, err := f.PopExpect(KindInt)
		if err != nil {
			return err
		}
		f.Push(IntValue(int32(int8(v.Int))))
	case opI2C:
		v, err := f.PopExpect(KindInt)
		if err != nil {
			return err
		}
		f.Push(IntValue(int32(uint16(v.Int))))
	case opI2S:
		v, err := f.PopExpect(KindInt)
		if err != nil {
			return err
		}
		f.Push(IntValue(int32(int16(v.Int))))
	case opL2I:
		v, err := f.PopExpect(KindLong)
		if err != nil {
			return err
		}
		f.Push(IntValue(int32(v.Long)))
	case opL2F:
		v, err := f.PopExpect(KindLong)
		if err != nil {
			return err
		}
		f.Push(FloatValue(float32(v.Long)))
	case opL2D:
		v, err := f.PopExpect(KindLong)
		if err != nil {
			return err
		}
		f.Push(DoubleValue(float64(v.Long)))
	case opF2I:
		v, err := f.PopExpect(KindFloat)
		if err != nil {
			return err
		}
		f.Push(IntValue(int32(v.Float)))
	case opF2L:
		v, err := f.PopExpect(KindFloat)
		if err != nil {
			return err
		}
		f.Push(LongValue(int64(v.Float)))
	case opF2D:
		v, err := f.PopExpect(KindFloat)
		if err != nil {
			return err
		}
		f.Push(DoubleValue(float64(v.Float)))
	case opD2I:
		v, err := f.PopExpect(KindDouble)
		if err != nil {
			return err
		}
		f.Push(IntValue(int32(v.Double)))
	case opD2L:
		v, err := f.PopExpect(KindDouble)
		if err != nil {
			return err
		}
		f.Push(LongValue(int64(v.Double)))
	case opD2F:
		v, err := f.PopExpect(KindDouble)
		if err != nil {
			return err
		}
		f.Push(FloatValue(float32(v.Double)))
	}
	return nil
}

func execCompare(f *Frame, op uint8) error {
	switch op {
	case opLCmp:
		b, err := f.PopExpect(KindLong)
		if err != nil {
			return err
		}
		a, err := f.PopExpect(KindLong)
		if err != nil {
			return err
		}
		f.Push(IntValue(int32(cmp3(a.Long, b.Long))))
	case opFCmpL, opFCmpG:
		b, err := f.PopExpect(KindFloat)
		if err != nil {
			return err
		}
		a, err := f.PopExpect(KindFloat)
		if err != nil {
			return err
		}
		if math.IsNaN(float64(a.Float)) || math.IsNaN(float64(b.Float)) {
			if op == opFCmpL {
				f.Push(IntValue(-1))
			} else {
				f.Push(IntValue(1))
			}
			return nil
		}
		f.Push(IntValue(int32(cmp3(a.Float, b.Float))))
	case opDCmpL, opDCmpG:
		b, err := f.PopExpect(KindDouble)
		if err != nil {
			return err
		}
		a, err := f.PopExpect(KindDouble)
		if err != nil {
			return err
		}
		if math.IsNaN(a.Double) || math.IsNaN(b.Double) {
			if op == opDCmpL {
				f.Push(IntValue(-1))
			} else {
				f.Push(IntValue(1))
			}
			return nil
		}
		f.Push(IntValue(int32(cmp3(a.Double, b.Double))))
	}
	return nil
}

func cmp3[T int64 | float32 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func evalUnaryBranch(f *Frame, op uint8, opcodeAddr int) (bool, int, error) {
	v, err := f.PopExpect(KindInt)
	if err != nil {
		return false, 0, err
	}
	offset := int(f.ReadI16())
	var taken bool
	switch op {
	case opIfEq:
		taken = v.Int == 0
	case opIfNe:
		taken = v.Int != 0
	case opIfLt:
		taken = v.Int < 0
	case opIfGe:
		taken = v.Int >= 0
	case opIfGt:
		taken = v.Int > 0
	case opIfLe:
		taken = v.Int <= 0
	}
	return taken, opcodeAddr + offset, nil
}

func evalBinaryBranch(f *Frame, op uint8, opcodeAddr int) (bool, int, error) {
	b, err := f.PopExpect(KindInt)
	if err != nil {
		return false, 0, err
	}
	a, err := f.PopExpect(KindInt)
	if err != nil {
		return false, 0, err
	}
	offset := int(f.ReadI16())
	var taken bool
	switch op {
	case opIfICmpEq:
		taken = a.Int == b.Int
	case opIfICmpNe:
		taken = a.Int != b.Int
	case opIfICmpLt:
		taken = a.Int < b.Int
	case opIfICmpGe:
		taken = a.Int >= b.Int
	case opIfICmpGt:
		taken = a.Int > b.Int
	case opIfICmpLe:
		taken = a.Int <= b.Int
	}
	return taken, opcodeAddr + offset, nil
}

// alignPC advances pc forward to the next multiple of 4 relative to the
// start of the code array, as TABLESWITCH/LOOKUPSWITCH require.
func alignPC(pc int) int {
	for pc%4 != 0 {
		pc++
	}
	return pc
}

func execTableSwitch(f *Frame, opcodeAddr int) (int, error) {
	f.PC = alignPC(f.PC)
	defaultOffset := int(f.ReadI32())
	low := f.ReadI32()
	high := f.ReadI32()
	v, err := f.PopExpect(KindInt)
	if err != nil {
		return 0, err
	}
	if v.Int < low || v.Int > high {
		return opcodeAddr + defaultOffset, nil
	}
	skip := int(v.Int-low) * 4
	f.PC += skip
	offset := int(f.ReadI32())
	return opcodeAddr + offset, nil
}

func execLookupSwitch(f *Frame, opcodeAddr int) (int, error) {
	f.PC = alignPC(f.PC)
	defaultOffset := int(f.ReadI32())
	npairs := f.ReadI32()
	v, err := f.PopExpect(KindInt)
	if err != nil {
		return 0, err
	}
	for i := int32(0); i < npairs; i++ {
		match := f.ReadI32()
		offset := int(f.ReadI32())
		if match == v.Int {
			return opcodeAddr + offset, nil
		}
	}
	return opcodeAddr + defaultOffset, nil
}

func execNewArray(f *Frame) error {
	tag := f.ReadU8()
	length, err := f.PopExpect(KindInt)
	if err != nil {
		return err
	}
	if length.Int < 0 {
		return vmerr.New(vmerr.ErrIndexOutOfBounds, "negative array length %d", length.Int)
	}
	var elem sig.Type
	switch tag {
	case tBoolean:
		elem = sig.Boolean()
	case tChar:
		elem = sig.Char()
	case tFloat:
		elem = sig.Float()
	case tDouble:
		elem = sig.Double()
	case tByte:
		elem = sig.Byte()
	case tShort:
		elem = sig.Short()
	case tInt:
		elem = sig.Int()
	case tLong:
		elem = sig.Long()
	default:
		return vmerr.New(vmerr.ErrMalformedDescriptor, "unknown NEWARRAY type tag %d", tag)
	}
	f.Push(ArrValue(NewArrayObject(elem, int(length.Int))))
	return nil
}

func (vm *VM) execANewArray(f *Frame) error {
	index := f.ReadU16()
	entry, err := f.Class.Pool.At(index)
	if err != nil {
		return err
	}
	if entry.Kind != rtpool.KindClassRef {
		return vmerr.New(vmerr.ErrMalformedDescriptor, "ANEWARRAY operand is not a class ref")
	}
	length, err := f.PopExpect(KindInt)
	if err != nil {
		return err
	}
	if length.Int < 0 {
		return vmerr.New(vmerr.ErrIndexOutOfBounds, "negative array length %d", length.Int)
	}
	f.Push(ArrValue(NewArrayObject(sig.Reference(entry.ClassRef.Class), int(length.Int))))
	return nil
}
