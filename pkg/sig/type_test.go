package sig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeDescriptorRoundTrip(t *testing.T) {
	cases := []string{
		"I", "J", "D", "F", "B", "C", "S", "Z",
		"Ljava/lang/String;",
		"[I",
		"[[Ljava/lang/Object;",
	}
	for _, desc := range cases {
		t.Run(desc, func(t *testing.T) {
			typ, n, err := ParseType(desc)
			require.NoError(t, err)
			require.Equal(t, len(desc), n)
			require.Equal(t, desc, typ.Descriptor())
		})
	}
}

func TestParseTypeMalformed(t *testing.T) {
	_, _, err := ParseType("Ljava/lang/String")
	require.Error(t, err)

	_, _, err = ParseType("Q")
	require.Error(t, err)

	_, _, err = ParseType("")
	require.Error(t, err)
}

func TestMethodSigDescriptorRoundTrip(t *testing.T) {
	ms, err := NewMethodSig("add", "(II)I")
	require.NoError(t, err)
	require.Equal(t, "(II)I", ms.Descriptor())
	require.NotNil(t, ms.Return)
	require.Equal(t, Int(), *ms.Return)
	require.Equal(t, "add:(II)I", ms.Key())

	voidMs, err := NewMethodSig("run", "()V")
	require.NoError(t, err)
	require.Nil(t, voidMs.Return)
	require.Equal(t, "()V", voidMs.Descriptor())

	complexMs, err := NewMethodSig("compute", "(Ljava/lang/String;[IJD)Ljava/lang/Object;")
	require.NoError(t, err)
	require.Len(t, complexMs.Params, 4)
	require.Equal(t, "(Ljava/lang/String;[IJD)Ljava/lang/Object;", complexMs.Descriptor())
}

func TestFieldSigKey(t *testing.T) {
	fs, err := NewFieldSig("count", "I")
	require.NoError(t, err)
	require.Equal(t, "count:I", fs.Key())
}

func TestClassSigArrayVsScalar(t *testing.T) {
	arr := Scalar("[I")
	require.True(t, arr.IsArray())
	require.Equal(t, "[I", arr.Descriptor())

	scalar := Scalar("java/lang/String")
	require.False(t, scalar.IsArray())
	require.Equal(t, "Ljava/lang/String;", scalar.Descriptor())
}

func TestMethodRefKeyDistinguishesOverloads(t *testing.T) {
	owner := Scalar("pkg/Foo")
	s1, _ := NewMethodSig("bar", "(I)V")
	s2, _ := NewMethodSig("bar", "(J)V")
	r1 := MethodRef{Owner: owner, Sig: s1}
	r2 := MethodRef{Owner: owner, Sig: s2}
	require.NotEqual(t, r1.Key(), r2.Key())
}
