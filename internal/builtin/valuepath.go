package builtin

import (
	"fmt"

	"github.com/wisplang/wisp/internal/machine"
)

// retainIfCons gives v a fresh independent reference if it is a *Cons,
// leaving every other Value type untouched (releaseValue in the machine
// package is similarly a no-op for non-list values, per its doc comment).
func retainIfCons(v machine.Value) machine.Value {
	if c, ok := v.(*machine.Cons); ok {
		machine.RetainCons(c)
	}
	return v
}

// registerValuePath installs builtin-table entries for every name the
// compiler also gives a dedicated opcode (arithmetic, comparison, and the
// data-constructor family). They are never reached by an ordinary call like
// (+ 1 2) — the compiler always emits the Add opcode for that — but they
// make these operators first-class values: (apply + (list 1 2)) loads a
// synthetic Function("+") off LOADGLOBAL's builtin-table fallback and calls
// it through here (SPEC_FULL.md §9 design note). Because this path runs
// through the VM's generic builtin-call wrapper (which releases every
// argument once after the call returns, unlike each dedicated opcode's own
// hand-tuned release choreography), any list argument this package embeds
// unchanged into a persisted result is retained once first — a defensive,
// slightly conservative choice that can never under-count a list's
// reference count, at the cost of not always matching the dedicated
// opcode's exact release schedule. Since this path only matters for the
// rare apply-on-an-operator-name case, not the compiled hot path, that
// trade is the right one.
func registerValuePath(vm *machine.VM) {
	b := vm.Builtins

	arith := func(name, op string) {
		b[name] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
			if len(args) < 2 {
				return nil, fmt.Errorf("%s: expects at least 2 arguments, got %d", name, len(args))
			}
			acc := args[0]
			for _, v := range args[1:] {
				var err error
				acc, err = machine.Binary(op, acc, v)
				if err != nil {
					return nil, err
				}
			}
			return acc, nil
		}
	}
	arith("+", "add")
	arith("-", "sub")
	arith("*", "mul")
	arith("/", "div")
	arith("%", "mod")

	b["neg"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("neg", args, 1); err != nil {
			return nil, err
		}
		return machine.Neg(args[0])
	}

	compare := func(name, op string) {
		b[name] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
			if err := needArgs(name, args, 2); err != nil {
				return nil, err
			}
			ok, err := machine.Compare(op, args[0], args[1])
			if err != nil {
				return nil, err
			}
			return machine.Bool(ok), nil
		}
	}
	compare("<", "lt")
	compare("<=", "leq")
	compare(">", "gt")
	compare(">=", "gte")
	compare("=", "eq")
	compare("!=", "neq")

	b["cons"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("cons", args, 2); err != nil {
			return nil, err
		}
		tail, ok := args[1].(*machine.Cons)
		if args[1] != nil && !ok {
			return nil, typeError("cons", "list", args[1])
		}
		return machine.NewCons(retainIfCons(args[0]), tail), nil
	}

	b["car"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("car", args, 1); err != nil {
			return nil, err
		}
		c, ok := args[0].(*machine.Cons)
		if !ok || c == nil {
			return nil, fmt.Errorf("car: expected a non-empty list")
		}
		return retainIfCons(c.Head), nil
	}

	b["cdr"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("cdr", args, 1); err != nil {
			return nil, err
		}
		c, ok := args[0].(*machine.Cons)
		if !ok || c == nil {
			return nil, fmt.Errorf("cdr: expected a non-empty list")
		}
		return machine.RetainCons(c.Tail), nil
	}

	b["list"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		elems := make([]machine.Value, len(args))
		for i, a := range args {
			elems[i] = retainIfCons(a)
		}
		return sliceToCons(elems), nil
	}

	b["append"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("append", args, 2); err != nil {
			return nil, err
		}
		a, aok := args[0].(*machine.Cons)
		if args[0] != nil && !aok {
			return nil, typeError("append", "list", args[0])
		}
		c, cok := args[1].(*machine.Cons)
		if args[1] != nil && !cok {
			return nil, typeError("append", "list", args[1])
		}
		machine.RetainCons(c)
		elems := consToSlice(a)
		out := c
		for i := len(elems) - 1; i >= 0; i-- {
			out = machine.NewCons(retainIfCons(elems[i]), out)
		}
		return out, nil
	}

	b["list-ref"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("list-ref", args, 2); err != nil {
			return nil, err
		}
		c, err := asCons("list-ref", args[0])
		if err != nil {
			return nil, err
		}
		idx, err := asInteger("list-ref", args[1])
		if err != nil {
			return nil, err
		}
		n := c
		for i := machine.Integer(0); i < idx && n != nil; i++ {
			n = n.Tail
		}
		if n == nil {
			return nil, fmt.Errorf("list-ref: index %d out of range", idx)
		}
		return retainIfCons(n.Head), nil
	}

	b["list-length"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("list-length", args, 1); err != nil {
			return nil, err
		}
		c, err := asCons("list-length", args[0])
		if err != nil {
			return nil, err
		}
		return machine.Integer(c.Len()), nil
	}

	b["vector"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		elems := make([]machine.Value, len(args))
		for i, a := range args {
			elems[i] = retainIfCons(a)
		}
		return machine.NewVector(elems), nil
	}

	b["vector-ref"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("vector-ref", args, 2); err != nil {
			return nil, err
		}
		v, err := asVector("vector-ref", args[0])
		if err != nil {
			return nil, err
		}
		idx, err := asInteger("vector-ref", args[1])
		if err != nil {
			return nil, err
		}
		if idx < 0 || int(idx) >= v.Len() {
			return nil, fmt.Errorf("vector-ref: index %d out of range (length %d)", idx, v.Len())
		}
		return retainIfCons(v.Get(int(idx))), nil
	}

	b["vector-set!"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("vector-set!", args, 3); err != nil {
			return nil, err
		}
		v, err := asVector("vector-set!", args[0])
		if err != nil {
			return nil, err
		}
		idx, err := asInteger("vector-set!", args[1])
		if err != nil {
			return nil, err
		}
		if idx < 0 || int(idx) >= v.Len() {
			return nil, fmt.Errorf("vector-set!: index %d out of range (length %d)", idx, v.Len())
		}
		v.Set(int(idx), retainIfCons(args[2]))
		return v, nil
	}

	b["vector-push!"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("vector-push!", args, 2); err != nil {
			return nil, err
		}
		v, err := asVector("vector-push!", args[0])
		if err != nil {
			return nil, err
		}
		v.Push(retainIfCons(args[1]))
		return v, nil
	}

	b["vector-pop!"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("vector-pop!", args, 1); err != nil {
			return nil, err
		}
		v, err := asVector("vector-pop!", args[0])
		if err != nil {
			return nil, err
		}
		if v.Len() == 0 {
			return nil, fmt.Errorf("vector-pop!: vector is empty")
		}
		return v.Pop(), nil
	}

	b["vector-length"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("vector-length", args, 1); err != nil {
			return nil, err
		}
		v, err := asVector("vector-length", args[0])
		if err != nil {
			return nil, err
		}
		return machine.Integer(v.Len()), nil
	}

	b["hashmap"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if len(args)%2 != 0 {
			return nil, fmt.Errorf("hashmap: expects an even number of key/value arguments, got %d", len(args))
		}
		h := machine.NewHashMap()
		for i := 0; i < len(args); i += 2 {
			key, err := asString("hashmap", args[i])
			if err != nil {
				return nil, err
			}
			h.Set(key.Go(), retainIfCons(args[i+1]))
		}
		return h, nil
	}
}
