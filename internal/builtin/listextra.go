package builtin

import "github.com/wisplang/wisp/internal/machine"

// registerListExtra installs null? (a genuinely new predicate distinct from
// the list? opcode, which accepts any list including non-empty ones),
// hashmap accessors (the hashmap opcode only covers construction — get/set/
// delete/keys/length are builtins, grounded on the teacher's dict builtin
// table), and the higher-order sequence functions map/filter/reduce plus
// their pmap/pfilter/preduce synonyms (SPEC_FULL.md's supplemental
// concurrency surface resolves these to single-threaded equivalents, since
// wisp's Value model is not safe for unsynchronized concurrent mutation —
// see DESIGN.md).
func registerListExtra(vm *machine.VM) {
	b := vm.Builtins

	b["null?"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("null?", args, 1); err != nil {
			return nil, err
		}
		return machine.Bool(isNilList(args[0]) || args[0] == nil), nil
	}

	b["reverse"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("reverse", args, 1); err != nil {
			return nil, err
		}
		c, err := asCons("reverse", args[0])
		if err != nil {
			return nil, err
		}
		var out *machine.Cons
		for n := c; n != nil; n = n.Tail {
			out = machine.NewCons(n.Head, out)
		}
		return out, nil
	}

	b["hashmap-get"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if len(args) != 2 && len(args) != 3 {
			return nil, arityError("hashmap-get", 3, len(args))
		}
		h, err := asHashMap("hashmap-get", args[0])
		if err != nil {
			return nil, err
		}
		key, err := asString("hashmap-get", args[1])
		if err != nil {
			return nil, err
		}
		if v, ok := h.Get(key.Go()); ok {
			return v, nil
		}
		if len(args) == 3 {
			return args[2], nil
		}
		return (*machine.Cons)(nil), nil
	}

	b["hashmap-set!"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("hashmap-set!", args, 3); err != nil {
			return nil, err
		}
		h, err := asHashMap("hashmap-set!", args[0])
		if err != nil {
			return nil, err
		}
		key, err := asString("hashmap-set!", args[1])
		if err != nil {
			return nil, err
		}
		h.Set(key.Go(), args[2])
		return h, nil
	}

	b["hashmap-delete!"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("hashmap-delete!", args, 2); err != nil {
			return nil, err
		}
		h, err := asHashMap("hashmap-delete!", args[0])
		if err != nil {
			return nil, err
		}
		key, err := asString("hashmap-delete!", args[1])
		if err != nil {
			return nil, err
		}
		h.Delete(key.Go())
		return h, nil
	}

	b["hashmap-keys"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("hashmap-keys", args, 1); err != nil {
			return nil, err
		}
		h, err := asHashMap("hashmap-keys", args[0])
		if err != nil {
			return nil, err
		}
		keys := h.Keys()
		elems := make([]machine.Value, len(keys))
		for i, k := range keys {
			elems[i] = machine.NewString(k)
		}
		return sliceToCons(elems), nil
	}

	b["hashmap-length"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("hashmap-length", args, 1); err != nil {
			return nil, err
		}
		h, err := asHashMap("hashmap-length", args[0])
		if err != nil {
			return nil, err
		}
		return machine.Integer(h.Len()), nil
	}

	mapFn := func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("map", args, 2); err != nil {
			return nil, err
		}
		c, err := asCons("map", args[1])
		if err != nil {
			return nil, err
		}
		var out []machine.Value
		for n := c; n != nil; n = n.Tail {
			r, err := vm.CallValue(args[0], []machine.Value{n.Head})
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
		return sliceToCons(out), nil
	}
	b["map"] = mapFn
	b["pmap"] = mapFn

	filterFn := func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("filter", args, 2); err != nil {
			return nil, err
		}
		c, err := asCons("filter", args[1])
		if err != nil {
			return nil, err
		}
		var out []machine.Value
		for n := c; n != nil; n = n.Tail {
			r, err := vm.CallValue(args[0], []machine.Value{n.Head})
			if err != nil {
				return nil, err
			}
			if machine.Truth(r) {
				out = append(out, n.Head)
			}
		}
		return sliceToCons(out), nil
	}
	b["filter"] = filterFn
	b["pfilter"] = filterFn

	reduceFn := func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("reduce", args, 3); err != nil {
			return nil, err
		}
		c, err := asCons("reduce", args[2])
		if err != nil {
			return nil, err
		}
		acc := args[1]
		for n := c; n != nil; n = n.Tail {
			acc, err = vm.CallValue(args[0], []machine.Value{acc, n.Head})
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	}
	b["reduce"] = reduceFn
	b["preduce"] = reduceFn
}
