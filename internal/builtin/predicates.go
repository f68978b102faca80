package builtin

import "github.com/wisplang/wisp/internal/machine"

// registerPredicates installs the type-predicate family (§6): one builtin
// per runtime Value concrete type (function? matches only named Function
// values, closure? only Closure values) plus the two compound predicates
// procedure? (Function or Closure) and number? (integer or float), each a
// Go type assertion or type switch on the argument.
func registerPredicates(vm *machine.VM) {
	reg := func(name string, pred func(machine.Value) bool) {
		vm.Builtins[name] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
			if err := needArgs(name, args, 1); err != nil {
				return nil, err
			}
			return machine.Bool(pred(args[0])), nil
		}
	}

	reg("integer?", func(v machine.Value) bool { _, ok := v.(machine.Integer); return ok })
	reg("float?", func(v machine.Value) bool { _, ok := v.(machine.Float); return ok })
	reg("number?", func(v machine.Value) bool {
		switch v.(type) {
		case machine.Integer, machine.Float:
			return true
		}
		return false
	})
	reg("boolean?", func(v machine.Value) bool { _, ok := v.(machine.Bool); return ok })
	reg("string?", func(v machine.Value) bool { _, ok := v.(*machine.String); return ok })
	reg("symbol?", func(v machine.Value) bool { _, ok := v.(*machine.Symbol); return ok })
	reg("function?", func(v machine.Value) bool { _, ok := v.(*machine.Function); return ok })
	reg("closure?", func(v machine.Value) bool { _, ok := v.(*machine.Closure); return ok })
	reg("procedure?", func(v machine.Value) bool {
		switch v.(type) {
		case *machine.Function, *machine.Closure:
			return true
		}
		return false
	})
	reg("list?", func(v machine.Value) bool { _, ok := v.(*machine.Cons); return ok || v == nil })
	reg("vector?", func(v machine.Value) bool { _, ok := v.(*machine.Vector); return ok })
	reg("hashmap?", func(v machine.Value) bool { _, ok := v.(*machine.HashMap); return ok })
	reg("pointer?", func(v machine.Value) bool { _, ok := v.(*machine.Pointer); return ok })
}
