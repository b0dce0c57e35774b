package vm

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/finchvm/finch/pkg/classfile"
	"github.com/finchvm/finch/pkg/rtpool"
	"github.com/finchvm/finch/pkg/sig"
	"github.com/finchvm/finch/pkg/vmerr"
)

// NativeLibrary is anything that can resolve a mangled C symbol name to a
// callable native function, whether a dlopen'd shared object or an
// in-process table of Go functions. Defined here (not in pkg/native) so
// that pkg/native can depend on pkg/vm without a cycle.
type NativeLibrary interface {
	Lookup(symbol string) (NativeFn, bool)
}

// ClassLoader loads, links, and caches classes by signature, and binds
// native methods against the libraries registered with it.
type ClassLoader struct {
	SearchPaths []string
	classes     map[string]*Class // keyed by sig.ClassSig.String()
	libraries   []NativeLibrary
	unbound     []*unboundNative
	log         *zap.Logger
}

type unboundNative struct {
	owner  *Class
	method *Method
}

func NewClassLoader(searchPaths []string, log *zap.Logger) *ClassLoader {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClassLoader{
		SearchPaths: searchPaths,
		classes:     make(map[string]*Class),
		log:         log,
	}
}

// RegisterLibrary adds a native library and attempts to bind every
// currently-unbound native method against it, per §4.4's native binding
// worklist: later libraries never re-attempt methods a prior library
// already bound.
func (cl *ClassLoader) RegisterLibrary(lib NativeLibrary) {
	cl.libraries = append(cl.libraries, lib)
	remaining := cl.unbound[:0]
	for _, u := range cl.unbound {
		symbol := MangleSymbol(u.owner.Sig, u.method.Sig)
		if fn, ok := lib.Lookup(symbol); ok {
			u.method.CodeKind = CodeNative
			u.method.Native = fn
			cl.log.Debug("bound native method", zap.String("symbol", symbol))
			continue
		}
		remaining = append(remaining, u)
	}
	cl.unbound = remaining
}

// Close releases every registered library that holds an external handle
// (dlopen'd shared objects); in-process tables have nothing to release.
// The loader is not usable afterwards.
func (cl *ClassLoader) Close() error {
	var firstErr error
	for _, lib := range cl.libraries {
		c, ok := lib.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	cl.libraries = nil
	return firstErr
}

// resolveClass loads (parsing and linking, but not initializing) a scalar
// class by its signature, using the cache if present.
func (cl *ClassLoader) resolveClass(s sig.ClassSig) (*Class, error) {
	key := s.String()
	if c, ok := cl.classes[key]; ok {
		return c, nil
	}
	if s.IsArray() {
		c := cl.newArrayClass(s)
		cl.classes[key] = c
		return c, nil
	}

	data, err := cl.readClassBytes(s.Name)
	if err != nil {
		return nil, err
	}

	cf, err := classfile.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	thisName, err := cf.ClassName()
	if err != nil {
		return nil, err
	}
	if thisName != s.Name {
		return nil, vmerr.New(vmerr.ErrSignatureMismatch, "requested %q, this_class is %q", s.Name, thisName)
	}

	pool, err := rtpool.Build(cf)
	if err != nil {
		return nil, err
	}

	c := &Class{
		Sig:         s,
		AccessFlags: cf.AccessFlags,
		Pool:        pool,
		Methods:     make(map[string]*Method),
		Fields:      make(map[string]uint16),
		FieldSigs:   make(map[string]sig.FieldSig),
		FieldConsts: make(map[string]uint16),
	}

	if cf.SuperClass != 0 {
		superName, err := cf.ClassNameAt(cf.SuperClass)
		if err != nil {
			return nil, err
		}
		c.SuperClass = sig.Scalar(superName)
		c.HasSuper = true
	}

	for _, f := range cf.Fields {
		fs, err := sig.NewFieldSig(f.Name, f.Descriptor)
		if err != nil {
			return nil, err
		}
		key := fs.Key()
		c.Fields[key] = f.AccessFlags
		c.FieldSigs[key] = fs
		if f.ConstantValueIndex != 0 {
			c.FieldConsts[key] = f.ConstantValueIndex
		}
	}

	for i := range cf.Methods {
		mi := &cf.Methods[i]
		ms, err := sig.NewMethodSig(mi.Name, mi.Descriptor)
		if err != nil {
			return nil, err
		}
		m := &Method{Sig: ms, AccessFlags: mi.AccessFlags}
		if mi.AccessFlags&classfile.AccNative != 0 {
			m.CodeKind = CodeUnresolvedNative
			cl.unbound = append(cl.unbound, &unboundNative{owner: c, method: m})
			cl.tryBindImmediately(c, m)
		} else if mi.Code != nil {
			m.CodeKind = CodeBytecode
			m.MaxLocals = mi.Code.MaxLocals
			m.Bytecode = mi.Code.Code
			m.Exceptions = mi.Code.ExceptionHandlers
		}
		c.Methods[ms.Key()] = m
	}

	cl.classes[key] = c
	cl.log.Info("loaded class", zap.String("class", s.Name))
	return c, nil
}

func (cl *ClassLoader) tryBindImmediately(owner *Class, m *Method) {
	symbol := MangleSymbol(owner.Sig, m.Sig)
	for _, lib := range cl.libraries {
		if fn, ok := lib.Lookup(symbol); ok {
			m.CodeKind = CodeNative
			m.Native = fn
			cl.unbound = cl.unbound[:len(cl.unbound)-1]
			return
		}
	}
}

// newArrayClass builds the special per-element-type class used for array
// objects: no methods, no fields, no <clinit>.
func (cl *ClassLoader) newArrayClass(s sig.ClassSig) *Class {
	return &Class{
		Sig:         s,
		FieldValues: map[string]Value{}, // arrays are never <clinit>-initialized; mark "done" up front
		Methods:     map[string]*Method{},
		Fields:      map[string]uint16{},
		FieldSigs:   map[string]sig.FieldSig{},
		FieldConsts: map[string]uint16{},
	}
}

// readClassBytes probes the current working directory first, then each
// configured search path, appending ".class" to the slash-preserved name.
func (cl *ClassLoader) readClassBytes(name string) ([]byte, error) {
	rel := name + ".class"
	if data, err := os.ReadFile(rel); err == nil {
		return data, nil
	}
	for _, path := range cl.SearchPaths {
		full := filepath.Join(path, rel)
		if data, err := os.ReadFile(full); err == nil {
			return data, nil
		}
	}
	return nil, vmerr.New(vmerr.ErrClassNotFound, "%s", name)
}
