package builtin_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisplang/wisp/internal/machine"
)

func TestStringLength(t *testing.T) {
	vm := newVM(t)
	got, err := call(t, vm, "string-length", machine.NewString("héllo"))
	require.NoError(t, err)
	require.Equal(t, machine.Integer(5), got, "counts runes, not bytes")
}

func TestSubstring(t *testing.T) {
	vm := newVM(t)

	got, err := call(t, vm, "substring", machine.NewString("hello"), machine.Integer(1), machine.Integer(3))
	require.NoError(t, err)
	require.Equal(t, machine.NewString("el"), got)

	got, err = call(t, vm, "substring", machine.NewString("hello"), machine.Integer(2))
	require.NoError(t, err)
	require.Equal(t, machine.NewString("llo"), got)

	_, err = call(t, vm, "substring", machine.NewString("hi"), machine.Integer(0), machine.Integer(9))
	require.Error(t, err)
}

func TestStringAppend(t *testing.T) {
	vm := newVM(t)
	got, err := call(t, vm, "string-append", machine.NewString("foo"), machine.NewString("bar"))
	require.NoError(t, err)
	require.Equal(t, machine.NewString("foobar"), got)
}

func TestStringListRoundTrip(t *testing.T) {
	vm := newVM(t)
	lst, err := call(t, vm, "string->list", machine.NewString("ab"))
	require.NoError(t, err)

	back, err := call(t, vm, "list->string", lst)
	require.NoError(t, err)
	require.Equal(t, machine.NewString("ab"), back)
}

func TestCharCodeRequiresSingleCharacter(t *testing.T) {
	vm := newVM(t)
	got, err := call(t, vm, "char-code", machine.NewString("A"))
	require.NoError(t, err)
	require.Equal(t, machine.Integer('A'), got)

	_, err = call(t, vm, "char-code", machine.NewString("AB"))
	require.Error(t, err)
}

func TestNumberStringRoundTrip(t *testing.T) {
	vm := newVM(t)

	s, err := call(t, vm, "number->string", machine.Integer(42))
	require.NoError(t, err)
	require.Equal(t, machine.NewString("42"), s)

	n, err := call(t, vm, "string->number", machine.NewString("42"))
	require.NoError(t, err)
	require.Equal(t, machine.Integer(42), n)

	f, err := call(t, vm, "string->number", machine.NewString("3.5"))
	require.NoError(t, err)
	require.Equal(t, machine.Float(3.5), f)

	_, err = call(t, vm, "string->number", machine.NewString("not-a-number"))
	require.Error(t, err)
}

func TestStringSplitAndJoin(t *testing.T) {
	vm := newVM(t)

	parts, err := call(t, vm, "string-split", machine.NewString("a,b,c"), machine.NewString(","))
	require.NoError(t, err)

	joined, err := call(t, vm, "string-join", parts, machine.NewString("-"))
	require.NoError(t, err)
	require.Equal(t, machine.NewString("a-b-c"), joined)
}

func TestStringTrimAndReplace(t *testing.T) {
	vm := newVM(t)

	trimmed, err := call(t, vm, "string-trim", machine.NewString("  hi  "))
	require.NoError(t, err)
	require.Equal(t, machine.NewString("hi"), trimmed)

	replaced, err := call(t, vm, "string-replace", machine.NewString("a-b-c"), machine.NewString("-"), machine.NewString("_"))
	require.NoError(t, err)
	require.Equal(t, machine.NewString("a_b_c"), replaced)
}

func TestStringPredicates(t *testing.T) {
	vm := newVM(t)

	got, err := call(t, vm, "string-starts-with?", machine.NewString("hello"), machine.NewString("he"))
	require.NoError(t, err)
	require.Equal(t, machine.Bool(true), got)

	got, err = call(t, vm, "string-ends-with?", machine.NewString("hello"), machine.NewString("lo"))
	require.NoError(t, err)
	require.Equal(t, machine.Bool(true), got)

	got, err = call(t, vm, "string-contains?", machine.NewString("hello"), machine.NewString("ell"))
	require.NoError(t, err)
	require.Equal(t, machine.Bool(true), got)
}

func TestStringCase(t *testing.T) {
	vm := newVM(t)

	up, err := call(t, vm, "string-upcase", machine.NewString("abc"))
	require.NoError(t, err)
	require.Equal(t, machine.NewString("ABC"), up)

	down, err := call(t, vm, "string-downcase", machine.NewString("ABC"))
	require.NoError(t, err)
	require.Equal(t, machine.NewString("abc"), down)
}

func TestSymbolStringRoundTrip(t *testing.T) {
	vm := newVM(t)

	s, err := call(t, vm, "symbol->string", machine.Intern("foo"))
	require.NoError(t, err)
	require.Equal(t, machine.NewString("foo"), s)

	sym, err := call(t, vm, "string->symbol", machine.NewString("foo"))
	require.NoError(t, err)
	require.Same(t, machine.Intern("foo"), sym)
}
