// Package builtin implements wisp's "thick layer" of named operations (§6
// "Builtin surface"): text, list, vector, hashmap, file I/O, math, time,
// reflection and FFI functions dispatched through the Call/TailCall/Apply
// opcodes rather than given dedicated bytecode, exactly the scope-
// compression documented in internal/bytecode's package doc. Each function
// here has the machine.BuiltinFunc signature and is installed into a VM's
// Builtins table by Register, mirroring how the teacher wires its
// starlarkstruct/stdlib functions into a single starlark.StringDict at
// interpreter setup.
package builtin

import (
	"fmt"

	"github.com/wisplang/wisp/internal/machine"
)

// Register installs every builtin this package implements into vm.Builtins.
// Called once by each driver (cmd/wispc, cmd/wisp and cmd/wish all install
// the full table; a defmacro body run by cmd/wispc may call any builtin)
// before compiling or running a program.
func Register(vm *machine.VM) {
	registerPredicates(vm)
	registerText(vm)
	registerListExtra(vm)
	registerIO(vm)
	registerMath(vm)
	registerTime(vm)
	registerReflect(vm)
	registerFFI(vm)
	registerMisc(vm)
	registerValuePath(vm)
}

func arityError(name string, want int, got int) error {
	return fmt.Errorf("%s: expects %d argument(s), got %d", name, want, got)
}

func typeError(name string, want string, v machine.Value) error {
	return fmt.Errorf("%s: expected %s, got %s", name, want, v.Type())
}

func needArgs(name string, args []machine.Value, n int) error {
	if len(args) != n {
		return arityError(name, n, len(args))
	}
	return nil
}

func asString(name string, v machine.Value) (*machine.String, error) {
	s, ok := v.(*machine.String)
	if !ok {
		return nil, typeError(name, "string", v)
	}
	return s, nil
}

func asInteger(name string, v machine.Value) (machine.Integer, error) {
	i, ok := v.(machine.Integer)
	if !ok {
		return 0, typeError(name, "integer", v)
	}
	return i, nil
}

func asSymbol(name string, v machine.Value) (*machine.Symbol, error) {
	s, ok := v.(*machine.Symbol)
	if !ok {
		return nil, typeError(name, "symbol", v)
	}
	return s, nil
}

func asCons(name string, v machine.Value) (*machine.Cons, error) {
	c, ok := v.(*machine.Cons)
	if !ok {
		return nil, typeError(name, "list", v)
	}
	return c, nil
}

func asVector(name string, v machine.Value) (*machine.Vector, error) {
	vec, ok := v.(*machine.Vector)
	if !ok {
		return nil, typeError(name, "vector", v)
	}
	return vec, nil
}

func asHashMap(name string, v machine.Value) (*machine.HashMap, error) {
	h, ok := v.(*machine.HashMap)
	if !ok {
		return nil, typeError(name, "hashmap", v)
	}
	return h, nil
}

func isNilList(v machine.Value) bool {
	c, ok := v.(*machine.Cons)
	return ok && c == nil
}

func consToSlice(c *machine.Cons) []machine.Value {
	var out []machine.Value
	for n := c; n != nil; n = n.Tail {
		out = append(out, n.Head)
	}
	return out
}

func sliceToCons(vs []machine.Value) *machine.Cons {
	var list *machine.Cons
	for i := len(vs) - 1; i >= 0; i-- {
		list = machine.NewCons(vs[i], list)
	}
	return list
}
