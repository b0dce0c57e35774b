package vm

import (
	"io"

	"go.uber.org/zap"

	"github.com/finchvm/finch/pkg/classfile"
	"github.com/finchvm/finch/pkg/rtpool"
	"github.com/finchvm/finch/pkg/sig"
	"github.com/finchvm/finch/pkg/vmerr"
)

const maxFrameDepth = 1024

// VM owns the class loader and drives the top-level entry point; all
// per-invocation state lives in Frames it creates along the way.
type VM struct {
	Loader     *ClassLoader
	Stdout     io.Writer
	Log        *zap.Logger
	frameDepth int
}

func NewVM(loader *ClassLoader, stdout io.Writer, log *zap.Logger) *VM {
	if log == nil {
		log = zap.NewNop()
	}
	return &VM{Loader: loader, Stdout: stdout, Log: log}
}

// Execute resolves mainClass, initializes it, locates main([Ljava/lang/String;)V,
// and runs it with an empty argument vector's worth of locals.
func (vm *VM) Execute(mainClass string) error {
	ms, err := sig.NewMethodSig("main", "([Ljava/lang/String;)V")
	if err != nil {
		return err
	}
	argsArray := NewArrayObject(sig.Reference(sig.Scalar("java/lang/String")), 0)
	_, _, err = vm.Call(sig.MethodRef{Owner: sig.Scalar(mainClass), Sig: ms}, []Value{ArrValue(argsArray)})
	return err
}

// FindMethod resolves the owning class (initializing it), then looks the
// method up by signature on that class alone.
func (vm *VM) FindMethod(ref sig.MethodRef) (*Class, *Method, error) {
	class, err := vm.Loader.resolveClass(ref.Owner)
	if err != nil {
		return nil, nil, err
	}
	if err := vm.ensureInitialized(class); err != nil {
		return nil, nil, err
	}
	m, ok := class.MethodByKey(ref.Sig.Key())
	if !ok {
		return nil, nil, vmerr.New(vmerr.ErrNoSuchMethod, "%s", ref.Key())
	}
	return class, m, nil
}

// Call finds a method by symbolic reference and invokes it with args.
func (vm *VM) Call(ref sig.MethodRef, args []Value) (Value, bool, error) {
	class, m, err := vm.FindMethod(ref)
	if err != nil {
		return Value{}, false, err
	}
	return vm.invoke(class, m, args)
}

// GetStatic initializes the owning class, then reads the static field.
func (vm *VM) GetStatic(ref sig.FieldRef) (Value, error) {
	owner, err := vm.Loader.resolveClass(ref.Owner)
	if err != nil {
		return Value{}, err
	}
	if err := vm.ensureInitialized(owner); err != nil {
		return Value{}, err
	}
	v, ok := owner.FieldValues[ref.Sig.Key()]
	if !ok {
		return Value{}, vmerr.New(vmerr.ErrNoSuchField, "%s", ref.Key())
	}
	return v, nil
}

// PutStatic initializes the owning class, then writes the static field.
func (vm *VM) PutStatic(ref sig.FieldRef, v Value) error {
	owner, err := vm.Loader.resolveClass(ref.Owner)
	if err != nil {
		return err
	}
	if err := vm.ensureInitialized(owner); err != nil {
		return err
	}
	owner.FieldValues[ref.Sig.Key()] = v
	return nil
}

// ensureInitialized runs a class's <clinit> exactly once, per the flip-
// before-run guard: FieldValues is populated from ConstantValue defaults
// and marked non-nil *before* <clinit> runs, so a re-entrant call made
// from within <clinit> itself observes non-nil and returns immediately.
func (vm *VM) ensureInitialized(c *Class) error {
	if c.IsInitialized() {
		return nil
	}
	c.FieldValues = make(map[string]Value)
	for key, fs := range c.FieldSigs {
		if c.Fields[key]&classfile.AccStatic == 0 { // only static fields get default storage here
			continue
		}
		if idx, ok := c.FieldConsts[key]; ok {
			v, err := vm.resolveLiteral(c, idx)
			if err != nil {
				return err
			}
			c.FieldValues[key] = v
		} else {
			c.FieldValues[key] = DefaultValue(fs.Type)
		}
	}

	clinitSig, _ := sig.NewMethodSig("<clinit>", "()V")
	if m, ok := c.MethodByKey(clinitSig.Key()); ok {
		vm.Log.Debug("running <clinit>", zap.String("class", c.Sig.String()))
		if _, _, err := vm.invoke(c, m, nil); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) resolveLiteral(c *Class, index uint16) (Value, error) {
	entry, err := c.Pool.At(index)
	if err != nil {
		return Value{}, err
	}
	switch entry.Kind {
	case rtpool.KindIntLiteral:
		return IntValue(entry.IntVal), nil
	case rtpool.KindLongLiteral:
		return LongValue(entry.LongVal), nil
	case rtpool.KindFloatLiteral:
		return FloatValue(entry.FloatVal), nil
	case rtpool.KindDoubleLiteral:
		return DoubleValue(entry.DoubleVal), nil
	case rtpool.KindStringLiteral:
		return RefValue(vm.newStringObject(entry.StringVal)), nil
	default:
		return Value{}, vmerr.New(vmerr.ErrMalformedDescriptor, "constant pool index %d is not a literal", index)
	}
}

// invoke runs a method (native or bytecode) and returns its result.
// hasReturn is false for void methods.
func (vm *VM) invoke(owner *Class, m *Method, args []Value) (Value, bool, error) {
	switch m.CodeKind {
	case CodeNative:
		return m.Native(args)
	case CodeUnresolvedNative:
		return Value{}, false, vmerr.New(vmerr.ErrUnboundNative, "%s#%s", owner.Sig.String(), m.Sig.Key())
	}

	vm.frameDepth++
	defer func() { vm.frameDepth-- }()
	if vm.frameDepth > maxFrameDepth {
		return Value{}, false, vmerr.New(vmerr.ErrStackUnderflow, "max frame depth %d exceeded", maxFrameDepth)
	}

	frame := NewFrame(owner, m, args)
	return vm.run(frame)
}
