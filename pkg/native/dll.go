package native

import (
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/finchvm/finch/pkg/vm"
	"github.com/finchvm/finch/pkg/vmerr"
)

// DLLibrary is a native library backed by a real dlopen'd shared object,
// called through purego's raw-symbol calling convention rather than cgo.
// Every exported symbol is expected to implement the uniform ABI from §6:
//
//	CValue *fn(uintptr argc, CValue *argv)
//
// A nil return pointer means "no value" (a void native method).
type DLLibrary struct {
	handle uintptr
}

// LoadDLLibrary dlopen's path and wraps it for symbol lookup.
func LoadDLLibrary(path string) (*DLLibrary, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, vmerr.New(vmerr.ErrClassNotFound, "dlopen %s: %v", path, err)
	}
	return &DLLibrary{handle: handle}, nil
}

// Close releases the dlopen handle. The library's symbols must not be
// called afterwards.
func (d *DLLibrary) Close() error {
	return purego.Dlclose(d.handle)
}

// Lookup resolves symbol via dlsym and, on success, wraps it in a NativeFn
// that marshals args to CValue, invokes the symbol through
// purego.SyscallN, and unmarshals the result.
func (d *DLLibrary) Lookup(symbol string) (vm.NativeFn, bool) {
	addr, err := purego.Dlsym(d.handle, symbol)
	if err != nil || addr == 0 {
		return nil, false
	}
	return func(args []vm.Value) (vm.Value, bool, error) {
		argv := make([]CValue, len(args))
		for i, a := range args {
			argv[i] = ToCValue(a)
		}
		var argvPtr uintptr
		if len(argv) > 0 {
			argvPtr = uintptr(unsafe.Pointer(&argv[0]))
		}
		r1, _, errno := purego.SyscallN(addr, uintptr(len(args)), argvPtr)
		if errno != 0 {
			return vm.Value{}, false, vmerr.New(vmerr.ErrUnboundNative, "native call to %s failed: errno %d", symbol, errno)
		}
		if r1 == 0 {
			return vm.Value{}, false, nil
		}
		result := (*CValue)(unsafe.Pointer(r1))
		return FromCValue(*result), true, nil
	}, true
}
