package vm

import (
	"strings"

	"github.com/finchvm/finch/pkg/sig"
)

// MangleSymbol derives the canonical C symbol name for a native method:
// the class name's slash segments joined with underscores, followed by the
// method name with any underscore within it escaped as "_1". For example
// java/lang/System.arraycopy mangles to java_lang_System_arraycopy.
func MangleSymbol(owner sig.ClassSig, method sig.MethodSig) string {
	className := strings.ReplaceAll(owner.Name, "/", "_")
	escapedMethod := strings.ReplaceAll(method.Name, "_", "_1")
	return className + "_" + escapedMethod
}
