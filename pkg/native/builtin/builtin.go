// Package builtin ships Go implementations of the native primitives the
// spec names as the "expected surface for bundled support classes" (§6),
// registered into a native.TableLibrary so the engine can run end-to-end
// without compiling and dlopen'ing an external C library. A real
// --native-lib is given the chance to bind these symbols first (the
// class loader only offers an unbound method to each library in turn, so
// whichever library claims a symbol first wins); this table exists purely
// as a fallback so a freshly built class file has somewhere to land.
package builtin

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/finchvm/finch/pkg/native"
	"github.com/finchvm/finch/pkg/vm"
	"github.com/finchvm/finch/pkg/vmerr"
)

// Library builds a native.TableLibrary exposing println/write/readInt,
// System.arraycopy, and Math.log10/pow against the given stdout/stdin.
func Library(stdout io.Writer, stdin io.Reader) *native.TableLibrary {
	t := native.NewTableLibrary()
	reader := bufio.NewReader(stdin)

	t.Register("java_io_PrintStream_println", func(args []vm.Value) (vm.Value, bool, error) {
		switch len(args) {
		case 1:
			fmt.Fprintln(stdout, args[0].Int)
		case 2:
			fmt.Fprintln(stdout, args[0].Int, args[1].Int)
		default:
			return vm.Value{}, false, vmerr.New(vmerr.ErrMalformedDescriptor, "println: unexpected arg count %d", len(args))
		}
		return vm.Value{}, false, nil
	})

	t.Register("java_io_PrintStream_write", func(args []vm.Value) (vm.Value, bool, error) {
		if len(args) != 1 {
			return vm.Value{}, false, vmerr.New(vmerr.ErrMalformedDescriptor, "write: expected 1 arg, got %d", len(args))
		}
		fmt.Fprint(stdout, string(rune(args[0].Int)))
		return vm.Value{}, false, nil
	})

	t.Register("java_io_Console_readInt", func(args []vm.Value) (vm.Value, bool, error) {
		var n int32
		if _, err := fmt.Fscan(reader, &n); err != nil {
			return vm.Value{}, false, vmerr.New(vmerr.ErrUnboundNative, "readInt: %v", err)
		}
		return vm.IntValue(n), true, nil
	})

	t.Register("java_lang_System_arraycopy", func(args []vm.Value) (vm.Value, bool, error) {
		if len(args) != 5 {
			return vm.Value{}, false, vmerr.New(vmerr.ErrMalformedDescriptor, "arraycopy: expected 5 args, got %d", len(args))
		}
		src, dst := args[0].Arr, args[2].Arr
		if src == nil || dst == nil {
			return vm.Value{}, false, vmerr.New(vmerr.ErrTypeMismatch, "arraycopy: src/dst must be arrays")
		}
		dst.CopyFrom(src, int(args[1].Int), int(args[3].Int), int(args[4].Int))
		return vm.Value{}, false, nil
	})

	t.Register("java_lang_Math_log10", func(args []vm.Value) (vm.Value, bool, error) {
		if len(args) != 1 {
			return vm.Value{}, false, vmerr.New(vmerr.ErrMalformedDescriptor, "log10: expected 1 arg, got %d", len(args))
		}
		return vm.DoubleValue(math.Log10(args[0].Double)), true, nil
	})

	t.Register("java_lang_Math_pow", func(args []vm.Value) (vm.Value, bool, error) {
		if len(args) != 2 {
			return vm.Value{}, false, vmerr.New(vmerr.ErrMalformedDescriptor, "pow: expected 2 args, got %d", len(args))
		}
		return vm.DoubleValue(math.Pow(args[0].Double, args[1].Double)), true, nil
	})

	return t
}
