package machine

// call implements the CALL opcode's calling convention (§4.6): builtins are
// invoked in place unless shadowed by a same-named user function, in which
// case a new frame is pushed for the named function.
func (vm *VM) call(name string, argc int) error {
	if _, shadowed := vm.Functions[name]; !shadowed {
		if bf, ok := vm.Builtins[name]; ok {
			args := vm.popN(argc)
			res, err := bf(vm, args)
			for _, a := range args {
				releaseValue(a)
			}
			if err != nil {
				return vm.runtimeError("%s", err)
			}
			vm.push(res)
			return nil
		}
	}

	code, ok := vm.Functions[name]
	if !ok {
		return vm.runtimeError("undefined function %q", name)
	}

	args := vm.popN(argc)
	fr := &Frame{
		ReturnAddr: vm.PC,
		ReturnCode: vm.Code,
		Locals:     args,
		FuncName:   name,
		StackBase:  len(vm.Stack),
		ArgCount:   argc,
	}
	vm.pushFrame(fr, code)
	return nil
}

// tailCall implements TAILCALL (§4.6): reuses the current frame instead of
// pushing a new one, so tail-recursive functions run in O(1) call-stack
// depth (§8 property #3). Calls that resolve to a builtin or to a
// closure-valued global fall back to ordinary Call+Ret semantics, since
// neither case can reuse the current frame's bytecode array.
func (vm *VM) tailCall(name string, argc int) error {
	if _, shadowed := vm.Functions[name]; !shadowed {
		if _, isBuiltin := vm.Builtins[name]; isBuiltin {
			if err := vm.call(name, argc); err != nil {
				return err
			}
			return vm.ret()
		}
	}
	if g, ok := vm.Globals[name]; ok {
		if clo, isClosure := g.(*Closure); isClosure {
			res, err := vm.CallClosureValue(clo, vm.popN(argc))
			if err != nil {
				return err
			}
			vm.push(res)
			return vm.ret()
		}
	}

	code, ok := vm.Functions[name]
	if !ok {
		return vm.runtimeError("undefined function %q", name)
	}

	args := vm.popN(argc)
	fr := vm.frame()
	for _, v := range fr.Locals {
		releaseValue(v)
	}
	vm.Stack = vm.Stack[:fr.StackBase]
	fr.Locals = args
	fr.HasLoop = false
	fr.FuncName = name
	fr.ArgCount = argc
	vm.Code = code
	vm.PC = 0
	return nil
}

// ret implements RET: truncate the value stack to the frame's stack base
// and push the single return value (§3 invariant, §8 property #2).
func (vm *VM) ret() error {
	n := len(vm.Frames)
	fr := vm.Frames[n-1]
	vm.Frames = vm.Frames[:n-1]

	result := vm.pop()
	for i := fr.StackBase; i < len(vm.Stack); i++ {
		releaseValue(vm.Stack[i])
	}
	vm.Stack = vm.Stack[:fr.StackBase]
	vm.push(result)

	vm.Code = fr.ReturnCode
	vm.PC = fr.ReturnAddr
	return nil
}

// callClosure implements CallClosure (§4.6): validates arity, packs
// variadic rest arguments into a list, and pushes a frame carrying the
// closure's captured environment.
func (vm *VM) callClosure(clo *Closure, argc int) error {
	nreq := len(clo.Params)
	if clo.HasRest {
		if argc < nreq {
			return vm.runtimeError("closure expects at least %d arguments, got %d", nreq, argc)
		}
	} else if argc != nreq {
		return vm.runtimeError("closure expects %d arguments, got %d", nreq, argc)
	}

	args := vm.popN(argc)
	if clo.HasRest {
		rest := args[nreq:]
		var list *Cons
		for i := len(rest) - 1; i >= 0; i-- {
			list = NewCons(rest[i], list)
		}
		args = append(args[:nreq:nreq], Value(list))
	}

	fr := &Frame{
		ReturnAddr: vm.PC,
		ReturnCode: vm.Code,
		Locals:     args,
		FuncName:   "<closure>",
		Captured:   clo.Captured,
		StackBase:  len(vm.Stack),
		ArgCount:   argc,
	}
	vm.pushFrame(fr, clo.Body)
	return nil
}

// callValue dispatches to call or callClosure depending on the runtime type
// of v, used by Apply and by TailCall's closure-valued-global fallback.
func (vm *VM) callValue(v Value, argc int) error {
	switch fn := v.(type) {
	case *Function:
		return vm.call(fn.Name, argc)
	case *Closure:
		return vm.callClosure(fn, argc)
	default:
		return vm.runtimeError("cannot call a value of type %s", v.Type())
	}
}

// apply implements APPLY (§4.2, §4.6): pop a list, pop a callable, invoke
// the callable as if the list's elements were positional arguments.
func (vm *VM) apply() error {
	listVal := vm.pop()
	callable := vm.pop()

	list, isList := listVal.(*Cons)
	if listVal != nil && !isList {
		return vm.runtimeError("apply: second argument must be a list, got %s", listVal.Type())
	}

	n := 0
	if isList {
		n = list.Len()
	}
	for c := list; c != nil; c = c.Tail {
		vm.push(retainValue(c.Head))
	}
	releaseValue(listVal)

	err := vm.callValue(callable, n)
	releaseValue(callable)
	return err
}
