package builtin

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/wisplang/wisp/internal/machine"
)

// registerReflect installs the reflection family (§6): introspecting a
// function/closure value's signature and captured environment, reporting a
// value's runtime type name, and generating fresh, collision-free symbols
// via gen-sym, grounded on the teacher's debug/introspection builtins that
// expose a compiled function's arity without needing a disassembler.
func registerReflect(vm *machine.VM) {
	b := vm.Builtins

	paramsAndRest := func(name string, v machine.Value) ([]string, bool, error) {
		switch fn := v.(type) {
		case *machine.Closure:
			return fn.Params, fn.HasRest, nil
		case *machine.Function:
			sig, ok := vm.FunctionSigs[fn.Name]
			if !ok {
				return nil, false, fmt.Errorf("%s: no signature recorded for function %q", name, fn.Name)
			}
			return sig.Params, sig.HasRest, nil
		default:
			return nil, false, typeError(name, "function or closure", v)
		}
	}

	b["function-arity"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("function-arity", args, 1); err != nil {
			return nil, err
		}
		params, _, err := paramsAndRest("function-arity", args[0])
		if err != nil {
			return nil, err
		}
		return machine.Integer(len(params)), nil
	}

	b["function-params"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("function-params", args, 1); err != nil {
			return nil, err
		}
		params, hasRest, err := paramsAndRest("function-params", args[0])
		if err != nil {
			return nil, err
		}
		elems := make([]machine.Value, len(params))
		for i, p := range params {
			elems[i] = machine.Intern(p)
		}
		list := sliceToCons(elems)
		if hasRest {
			return machine.NewCons(machine.Intern("&rest"), list), nil
		}
		return list, nil
	}

	b["closure-captured"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("closure-captured", args, 1); err != nil {
			return nil, err
		}
		clo, ok := args[0].(*machine.Closure)
		if !ok {
			return nil, typeError("closure-captured", "closure", args[0])
		}
		var entries []machine.Value
		for _, pair := range clo.Captured {
			entries = append(entries, sliceToCons([]machine.Value{machine.Intern(pair.Name), pair.Value}))
		}
		return sliceToCons(entries), nil
	}

	b["function-name"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("function-name", args, 1); err != nil {
			return nil, err
		}
		fn, ok := args[0].(*machine.Function)
		if !ok {
			return nil, typeError("function-name", "function", args[0])
		}
		return machine.Intern(fn.Name), nil
	}

	b["type-of"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("type-of", args, 1); err != nil {
			return nil, err
		}
		return machine.Intern(args[0].Type()), nil
	}

	b["gen-sym"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if len(args) > 1 {
			return nil, arityError("gen-sym", 1, len(args))
		}
		prefix := "g"
		if len(args) == 1 {
			s, err := asString("gen-sym", args[0])
			if err != nil {
				return nil, err
			}
			prefix = s.Go()
		}
		return machine.Intern(fmt.Sprintf("%s-%s", prefix, uuid.NewString())), nil
	}
}
