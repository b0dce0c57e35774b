package vm

import "github.com/finchvm/finch/pkg/sig"

// stringValueField is the field key under which a synthesized string
// object's backing char array lives, mirroring java.lang.String's internal
// char[] value field closely enough for LDC/ARETURN round-tripping.
const stringValueField = "value:[C"

var stringCharArrayType = sig.Reference(sig.Array(sig.Char()))

// stringClass lazily builds (and caches) the synthetic runtime class used
// for string literals resolved off LDC. It carries no methods: nothing in
// scope invokes String methods, only field access to recover the backing
// char array (end-to-end scenario 2).
func (vm *VM) stringClass() *Class {
	const key = "java/lang/String"
	if c, ok := vm.Loader.classes[key]; ok {
		return c
	}
	c := &Class{
		Sig:         sig.Scalar(key),
		Methods:     map[string]*Method{},
		Fields:      map[string]uint16{stringValueField: 0},
		FieldSigs:   map[string]sig.FieldSig{stringValueField: {Name: "value", Type: stringCharArrayType}},
		FieldConsts: map[string]uint16{},
		FieldValues: map[string]Value{}, // synthetic class, never needs <clinit>
	}
	vm.Loader.classes[key] = c
	return c
}

// newStringObject builds a string object from Go text, with a value field
// holding a char array of the UTF-16 code units (approximated here as one
// element per rune, sufficient for the ASCII-range literals this tier's
// bundled support classes use).
func (vm *VM) newStringObject(text string) *ScalarObject {
	runes := []rune(text)
	arr := NewArrayObject(sig.Char(), len(runes))
	for i, r := range runes {
		arr.Elements[i] = IntValue(int32(r))
	}
	return &ScalarObject{
		Class:  vm.stringClass(),
		Fields: map[string]Value{stringValueField: ArrValue(arr)},
	}
}
