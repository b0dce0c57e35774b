package vm

import (
	"github.com/finchvm/finch/pkg/classfile"
	"github.com/finchvm/finch/pkg/rtpool"
	"github.com/finchvm/finch/pkg/sig"
	"github.com/finchvm/finch/pkg/vmerr"
)

// fieldRefAt reads a GETSTATIC/PUTSTATIC/GETFIELD/PUTFIELD operand and
// resolves it to a symbolic field reference.
func fieldRefAt(f *Frame, index uint16) (sig.FieldRef, error) {
	entry, err := f.Class.Pool.At(index)
	if err != nil {
		return sig.FieldRef{}, err
	}
	if entry.Kind != rtpool.KindFieldRef {
		return sig.FieldRef{}, vmerr.New(vmerr.ErrMalformedDescriptor, "constant pool index %d is not a field ref", index)
	}
	return entry.FieldRef, nil
}

func (vm *VM) execGetStatic(f *Frame) error {
	ref, err := fieldRefAt(f, f.ReadU16())
	if err != nil {
		return err
	}
	v, err := vm.GetStatic(ref)
	if err != nil {
		return err
	}
	f.Push(v)
	return nil
}

func (vm *VM) execPutStatic(f *Frame) error {
	ref, err := fieldRefAt(f, f.ReadU16())
	if err != nil {
		return err
	}
	v, err := f.Pop()
	if err != nil {
		return err
	}
	return vm.PutStatic(ref, v)
}

func (vm *VM) execGetField(f *Frame) error {
	ref, err := fieldRefAt(f, f.ReadU16())
	if err != nil {
		return err
	}
	objVal, err := f.PopExpect(KindReference)
	if err != nil {
		return err
	}
	v, ok := objVal.Ref.GetField(ref.Sig.Key())
	if !ok {
		return vmerr.New(vmerr.ErrNoSuchField, "%s", ref.Sig.Key())
	}
	f.Push(v)
	return nil
}

func (vm *VM) execPutField(f *Frame) error {
	ref, err := fieldRefAt(f, f.ReadU16())
	if err != nil {
		return err
	}
	val, err := f.Pop()
	if err != nil {
		return err
	}
	objVal, err := f.PopExpect(KindReference)
	if err != nil {
		return err
	}
	objVal.Ref.SetField(ref.Sig.Key(), val)
	return nil
}

// execInvoke handles INVOKEVIRTUAL/INVOKESPECIAL/INVOKESTATIC uniformly:
// dispatch is always by the declared owner in the constant pool, never by
// the runtime class of the receiver (§9 "Virtual dispatch" — true
// polymorphic lookup is a documented non-goal at this tier).
func (vm *VM) execInvoke(f *Frame, op uint8) error {
	index := f.ReadU16()
	entry, err := f.Class.Pool.At(index)
	if err != nil {
		return err
	}
	if entry.Kind != rtpool.KindMethodRef && entry.Kind != rtpool.KindInterfaceMethodRef {
		return vmerr.New(vmerr.ErrMalformedDescriptor, "constant pool index %d is not a method ref", index)
	}
	mref := entry.MethodRef

	owner, method, err := vm.FindMethod(mref)
	if err != nil {
		return err
	}

	argc := len(mref.Sig.Params)
	if op != opInvokeStatic {
		argc++ // receiver
	}
	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		v, err := f.Pop()
		if err != nil {
			return err
		}
		args[i] = v
	}

	result, hasResult, err := vm.invoke(owner, method, args)
	if err != nil {
		return err
	}
	if hasResult {
		f.Push(result)
	}
	return nil
}

func (vm *VM) execNew(f *Frame) error {
	index := f.ReadU16()
	entry, err := f.Class.Pool.At(index)
	if err != nil {
		return err
	}
	if entry.Kind != rtpool.KindClassRef {
		return vmerr.New(vmerr.ErrMalformedDescriptor, "NEW operand is not a class ref")
	}
	class, err := vm.Loader.resolveClass(entry.ClassRef.Class)
	if err != nil {
		return err
	}
	if err := vm.ensureInitialized(class); err != nil {
		return err
	}
	f.Push(RefValue(newInstance(class)))
	return nil
}

// newInstance allocates a scalar object of class with every instance field
// set to its declared type's default.
func newInstance(class *Class) *ScalarObject {
	obj := &ScalarObject{Class: class, Fields: make(map[string]Value)}
	for key, fs := range class.FieldSigs {
		if class.Fields[key]&classfile.AccStatic != 0 {
			continue
		}
		obj.Fields[key] = DefaultValue(fs.Type)
	}
	return obj
}
