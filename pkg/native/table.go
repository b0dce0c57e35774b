package native

import "github.com/finchvm/finch/pkg/vm"

// TableLibrary is an in-process native library: a fixed map from mangled
// symbol name to a Go closure, satisfying vm.NativeLibrary without any
// dlopen/dlsym involved. Used both for the built-in natives in
// pkg/native/builtin and for registering fakes in tests.
type TableLibrary struct {
	fns map[string]vm.NativeFn
}

// NewTableLibrary builds an empty table; call Register to populate it.
func NewTableLibrary() *TableLibrary {
	return &TableLibrary{fns: make(map[string]vm.NativeFn)}
}

// Register binds symbol to fn, overwriting any prior registration under
// the same name.
func (t *TableLibrary) Register(symbol string, fn vm.NativeFn) {
	t.fns[symbol] = fn
}

// Lookup satisfies vm.NativeLibrary.
func (t *TableLibrary) Lookup(symbol string) (vm.NativeFn, bool) {
	fn, ok := t.fns[symbol]
	return fn, ok
}
