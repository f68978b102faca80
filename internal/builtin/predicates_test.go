package builtin_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisplang/wisp/internal/builtin"
	"github.com/wisplang/wisp/internal/machine"
)

func newVM(t *testing.T) *machine.VM {
	t.Helper()
	vm := machine.New(nil)
	builtin.Register(vm)
	return vm
}

func call(t *testing.T, vm *machine.VM, name string, args ...machine.Value) (machine.Value, error) {
	t.Helper()
	fn, ok := vm.Builtins[name]
	require.True(t, ok, "builtin %q is not registered", name)
	return fn(vm, args)
}

func TestPredicates(t *testing.T) {
	vm := newVM(t)

	cases := []struct {
		name string
		arg  machine.Value
		want bool
	}{
		{"integer?", machine.Integer(1), true},
		{"integer?", machine.Float(1), false},
		{"float?", machine.Float(1), true},
		{"number?", machine.Integer(1), true},
		{"number?", machine.Bool(true), false},
		{"boolean?", machine.Bool(false), true},
		{"string?", machine.NewString("x"), true},
		{"symbol?", machine.Intern("x"), true},
		{"list?", (*machine.Cons)(nil), true},
		{"list?", machine.NewCons(machine.Integer(1), nil), true},
		{"vector?", machine.NewVector(nil), true},
		{"hashmap?", machine.NewHashMap(), true},
	}
	for _, c := range cases {
		got, err := call(t, vm, c.name, c.arg)
		require.NoError(t, err)
		require.Equal(t, machine.Bool(c.want), got, "%s on %v", c.name, c.arg)
	}
}

func TestProcedurePredicateAcceptsBothCallableKinds(t *testing.T) {
	vm := newVM(t)

	fnVal, err := call(t, vm, "procedure?", &machine.Function{Name: "f"})
	require.NoError(t, err)
	require.Equal(t, machine.Bool(true), fnVal)

	cloVal, err := call(t, vm, "procedure?", &machine.Closure{})
	require.NoError(t, err)
	require.Equal(t, machine.Bool(true), cloVal)

	notVal, err := call(t, vm, "procedure?", machine.Integer(1))
	require.NoError(t, err)
	require.Equal(t, machine.Bool(false), notVal)
}

func TestPredicateWrongArityErrors(t *testing.T) {
	vm := newVM(t)
	_, err := call(t, vm, "integer?")
	require.Error(t, err)
}
