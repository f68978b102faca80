package machine

import (
	"fmt"

	"github.com/wisplang/wisp/internal/bytecode"
)

// push, pop, popN manipulate the value stack. popN returns arguments in
// their original left-to-right order (it reverses the LIFO pop order
// internally), matching how the compiler pushes them.
func (vm *VM) push(v Value) { vm.Stack = append(vm.Stack, v) }

func (vm *VM) pop() Value {
	n := len(vm.Stack) - 1
	v := vm.Stack[n]
	vm.Stack = vm.Stack[:n]
	return v
}

func (vm *VM) popN(n int) []Value {
	if n == 0 {
		return nil
	}
	base := len(vm.Stack) - n
	args := make([]Value, n)
	copy(args, vm.Stack[base:])
	vm.Stack = vm.Stack[:base]
	return args
}

// RunProgram loads p's functions into the VM's function table (user
// functions are installed over, and may shadow, same-named builtins — see
// call/tailCall) and executes p.Main to completion, returning the value
// left on top of the stack, if any (§6 "run" driver semantics).
func (vm *VM) RunProgram(p *bytecode.Program) (Value, error) {
	for _, fn := range p.Functions {
		vm.Functions[fn.Name] = fn.Code
		vm.SetFunctionSig(fn.Name, fn.Params, fn.HasRest)
	}
	vm.Code = p.Main
	vm.PC = 0
	vm.Frames = nil

	if err := vm.Run(); err != nil {
		return nil, err
	}
	if len(vm.Stack) == 0 {
		return nil, nil
	}
	return vm.Stack[len(vm.Stack)-1], nil
}

// Run executes instructions from vm.Code starting at vm.PC until a HALT
// instruction or a runtime error (§4.6). It is also the driver used to run
// a closure body synchronously (runFrame, used by the macro expander and the
// higher-order builtins, pushes a fresh Frame/Code pair and calls Run on the
// same VM).
func (vm *VM) Run() error {
	baseDepth := len(vm.Frames)
	for {
		if vm.PC >= len(vm.Code) {
			return vm.runtimeError("fell off the end of the instruction stream")
		}
		pc := vm.PC
		insn := vm.Code[pc]
		vm.PC = pc + 1

		switch insn.Op {
		case bytecode.NOP:
			// no-op

		case bytecode.HALT:
			return nil

		case bytecode.PUSH:
			vm.push(literalValue(insn.Lit))

		case bytecode.POPN:
			for i := 0; i < insn.N; i++ {
				releaseValue(vm.pop())
			}

		case bytecode.SLIDE:
			// Pop-top-pop-n-push-top-back (§4.5 "let"/"loop" frames are
			// balanced), adapted to where this VM's let/loop bindings actually
			// live: since GetLocal/SetLocal address Frame.Locals rather than an
			// absolute position on the shared value stack (see Frame.Locals'
			// doc comment), the n slots a let/loop block introduced are its
			// trailing n entries in the current frame's Locals, not the top of
			// vm.Stack — the block's result is already sitting on vm.Stack,
			// untouched, so there is nothing to slide there.
			fr := vm.frame()
			if insn.N > len(fr.Locals) {
				return vm.runtimeError("slide: %d exceeds %d locals", insn.N, len(fr.Locals))
			}
			base := len(fr.Locals) - insn.N
			for i := base; i < len(fr.Locals); i++ {
				releaseValue(fr.Locals[i])
			}
			fr.Locals = fr.Locals[:base]

		case bytecode.ADD, bytecode.SUB, bytecode.MUL, bytecode.DIV, bytecode.MOD:
			y := vm.pop()
			x := vm.pop()
			res, err := Binary(arithName(insn.Op), x, y)
			releaseValue(x)
			releaseValue(y)
			if err != nil {
				return vm.runtimeError("%s", err)
			}
			vm.push(res)

		case bytecode.NEG:
			x := vm.pop()
			res, err := Neg(x)
			releaseValue(x)
			if err != nil {
				return vm.runtimeError("%s", err)
			}
			vm.push(res)

		case bytecode.LEQ, bytecode.LT, bytecode.GT, bytecode.GTE, bytecode.EQ, bytecode.NEQ:
			y := vm.pop()
			x := vm.pop()
			res, err := Compare(compareName(insn.Op), x, y)
			releaseValue(x)
			releaseValue(y)
			if err != nil {
				return vm.runtimeError("%s", err)
			}
			vm.push(Bool(res))

		case bytecode.JMP:
			vm.PC = insn.Addr

		case bytecode.JMPIFFALSE:
			v := vm.pop()
			taken := !Truth(v)
			releaseValue(v)
			if taken {
				vm.PC = insn.Addr
			}

		case bytecode.CALL:
			if err := vm.call(insn.Name, insn.Argc); err != nil {
				return err
			}

		case bytecode.TAILCALL:
			if err := vm.tailCall(insn.Name, insn.Argc); err != nil {
				return err
			}

		case bytecode.RET:
			if err := vm.ret(); err != nil {
				return err
			}
			if len(vm.Frames) < baseDepth {
				return nil
			}

		case bytecode.LOADARG, bytecode.GETLOCAL:
			fr := vm.frame()
			if insn.N < 0 || insn.N >= len(fr.Locals) {
				return vm.runtimeError("local slot %d out of range (have %d)", insn.N, len(fr.Locals))
			}
			vm.push(retainValue(fr.Locals[insn.N]))

		case bytecode.SETLOCAL:
			fr := vm.frame()
			v := vm.pop()
			if insn.N == len(fr.Locals) {
				fr.Locals = append(fr.Locals, v)
			} else if insn.N >= 0 && insn.N < len(fr.Locals) {
				releaseValue(fr.Locals[insn.N])
				fr.Locals[insn.N] = v
			} else {
				return vm.runtimeError("local slot %d out of range (have %d)", insn.N, len(fr.Locals))
			}

		case bytecode.LOADGLOBAL:
			if v, ok := vm.Globals[insn.Name]; ok {
				vm.push(retainValue(v))
				break
			}
			// Not a define'd global: a bare reference to a named function or
			// builtin is a first-class value handle (§3 "Function"), resolved
			// here rather than at compile time since builtins are registered
			// into the VM at setup, not known to the compiler.
			if _, ok := vm.Functions[insn.Name]; ok {
				vm.push(&Function{Name: insn.Name})
				break
			}
			if _, ok := vm.Builtins[insn.Name]; ok {
				vm.push(&Function{Name: insn.Name})
				break
			}
			return vm.runtimeErrorWithHint(insn.Line, insn.Col, vm.suggestGlobal(insn.Name), "undefined variable %q", insn.Name)

		case bytecode.STOREGLOBAL:
			v := vm.pop()
			if old, ok := vm.Globals[insn.Name]; ok {
				releaseValue(old)
			}
			vm.Globals[insn.Name] = v

		case bytecode.CHECKARITY:
			fr := vm.frame()
			if fr.ArgCount != insn.N {
				vm.PC = insn.Addr
			}

		case bytecode.PACKRESTARGS:
			fr := vm.frame()
			if insn.N > len(fr.Locals) {
				return vm.runtimeError("packrestargs: index %d beyond %d locals", insn.N, len(fr.Locals))
			}
			rest := fr.Locals[insn.N:]
			var list *Cons
			for i := len(rest) - 1; i >= 0; i-- {
				list = NewCons(rest[i], list)
			}
			fr.Locals = append(append([]Value{}, fr.Locals[:insn.N]...), Value(list))

		case bytecode.MAKECLOSURE:
			captured := vm.collectCaptured(insn.CapturedNames)
			vm.push(&Closure{Params: append([]string(nil), insn.Params...), Body: insn.Body, Captured: captured})

		case bytecode.MAKEVARIADICCLOSURE:
			captured := vm.collectCaptured(insn.CapturedNames)
			vm.push(&Closure{
				Params:   append([]string(nil), insn.Params...),
				Rest:     insn.Rest,
				HasRest:  true,
				Body:     insn.Body,
				Captured: captured,
			})

		case bytecode.APPLY:
			if err := vm.apply(); err != nil {
				return err
			}

		case bytecode.LOADCAPTURED:
			fr := vm.frame()
			if insn.N < 0 || insn.N >= len(fr.Captured) {
				return vm.runtimeError("captured slot %d out of range (have %d)", insn.N, len(fr.Captured))
			}
			vm.push(retainValue(fr.Captured[insn.N].Value))

		case bytecode.BEGINLOOP:
			fr := vm.frame()
			fr.HasLoop = true
			fr.LoopStart = vm.PC
			fr.LoopBindingsCount = insn.N
			fr.LoopBindingsStart = len(fr.Locals) - insn.N

		case bytecode.RECUR:
			fr := vm.frame()
			if !fr.HasLoop {
				return vm.runtimeError("recur used outside of a loop")
			}
			newVals := vm.popN(insn.N)
			for i := 0; i < fr.LoopBindingsCount && i < len(newVals); i++ {
				idx := fr.LoopBindingsStart + i
				releaseValue(fr.Locals[idx])
				fr.Locals[idx] = newVals[i]
			}
			vm.PC = fr.LoopStart

		case bytecode.CONS:
			tail := vm.pop()
			head := vm.pop()
			tailCons, ok := tail.(*Cons)
			if tail != nil && !ok {
				return vm.runtimeError("cons: second argument must be a list, got %s", tail.Type())
			}
			vm.push(NewCons(head, tailCons))

		case bytecode.CAR:
			v := vm.pop()
			c, ok := v.(*Cons)
			if !ok || c == nil {
				releaseValue(v)
				return vm.runtimeError("car: expected a non-empty list")
			}
			vm.push(retainValue(c.Head))
			releaseValue(v)

		case bytecode.CDR:
			v := vm.pop()
			c, ok := v.(*Cons)
			if !ok || c == nil {
				releaseValue(v)
				return vm.runtimeError("cdr: expected a non-empty list")
			}
			vm.push(RetainCons(c.Tail))
			releaseValue(v)

		case bytecode.ISLIST:
			v := vm.pop()
			_, isNil := v.(*Cons)
			isList := v == nil || isNil
			releaseValue(v)
			vm.push(Bool(isList))

		case bytecode.MAKELIST:
			elems := vm.popN(insn.N)
			var list *Cons
			for i := len(elems) - 1; i >= 0; i-- {
				list = NewCons(elems[i], list)
			}
			vm.push(list)

		case bytecode.APPEND:
			b := vm.pop()
			a := vm.pop()
			ac, aok := a.(*Cons)
			bc, bok := b.(*Cons)
			if a != nil && !aok {
				return vm.runtimeError("append: first argument must be a list, got %s", a.Type())
			}
			if b != nil && !bok {
				return vm.runtimeError("append: second argument must be a list, got %s", b.Type())
			}
			vm.push(appendLists(ac, bc))
			releaseValue(a)
			releaseValue(b)

		case bytecode.LISTREF:
			v := vm.pop()
			c, ok := v.(*Cons)
			if !ok {
				releaseValue(v)
				return vm.runtimeError("list-ref: expected a list")
			}
			n := insn.N
			node := c
			for ; n > 0 && node != nil; n-- {
				node = node.Tail
			}
			if node == nil {
				releaseValue(v)
				return vm.runtimeError("list-ref: index %d out of range", insn.N)
			}
			vm.push(retainValue(node.Head))
			releaseValue(v)

		case bytecode.LISTLENGTH:
			v := vm.pop()
			c, ok := v.(*Cons)
			if v != nil && !ok {
				releaseValue(v)
				return vm.runtimeError("list-length: expected a list")
			}
			vm.push(Integer(c.Len()))
			releaseValue(v)

		case bytecode.MAKEVECTOR:
			elems := vm.popN(insn.N)
			vm.push(NewVector(elems))

		case bytecode.VECTORGET:
			idx := vm.pop()
			vec := vm.pop()
			v, ok := vec.(*Vector)
			i, iok := idx.(Integer)
			if !ok {
				return vm.runtimeError("vector-get: expected a vector, got %s", vec.Type())
			}
			if !iok || int(i) < 0 || int(i) >= v.Len() {
				return vm.runtimeError("vector-get: index out of range")
			}
			vm.push(retainValue(v.Get(int(i))))

		case bytecode.VECTORSET:
			val := vm.pop()
			idx := vm.pop()
			vec := vm.pop()
			v, ok := vec.(*Vector)
			i, iok := idx.(Integer)
			if !ok {
				return vm.runtimeError("vector-set!: expected a vector, got %s", vec.Type())
			}
			if !iok || int(i) < 0 || int(i) >= v.Len() {
				return vm.runtimeError("vector-set!: index out of range")
			}
			releaseValue(v.Get(int(i)))
			v.Set(int(i), val)
			vm.push(vec)

		case bytecode.VECTORPUSH:
			val := vm.pop()
			vec := vm.pop()
			v, ok := vec.(*Vector)
			if !ok {
				return vm.runtimeError("vector-push!: expected a vector, got %s", vec.Type())
			}
			v.Push(val)
			vm.push(vec)

		case bytecode.VECTORPOP:
			vec := vm.pop()
			v, ok := vec.(*Vector)
			if !ok {
				return vm.runtimeError("vector-pop!: expected a vector, got %s", vec.Type())
			}
			if v.Len() == 0 {
				return vm.runtimeError("vector-pop!: vector is empty")
			}
			vm.push(v.Pop())

		case bytecode.VECTORLENGTH:
			vec := vm.pop()
			v, ok := vec.(*Vector)
			if !ok {
				return vm.runtimeError("vector-length: expected a vector, got %s", vec.Type())
			}
			vm.push(Integer(v.Len()))

		case bytecode.MAKEHASHMAP:
			pairs := vm.popN(insn.N * 2)
			hm := NewHashMap()
			for i := 0; i+1 < len(pairs); i += 2 {
				key, ok := pairs[i].(*String)
				if !ok {
					return vm.runtimeError("hashmap literal: keys must be strings, got %s", pairs[i].Type())
				}
				hm.Set(key.Go(), pairs[i+1])
			}
			vm.push(hm)

		default:
			return vm.runtimeError("illegal opcode %v", insn.Op)
		}
	}
}

// collectCaptured pops len(names) values off the stack (pushed by the
// compiler immediately before MakeClosure/MakeVariadicClosure, in the same
// order as names) and pairs them up into a Closure's captured environment.
func (vm *VM) collectCaptured(names []string) []CapturedPair {
	if len(names) == 0 {
		return nil
	}
	vals := vm.popN(len(names))
	pairs := make([]CapturedPair, len(names))
	for i, n := range names {
		pairs[i] = CapturedPair{Name: n, Value: vals[i]}
	}
	return pairs
}

func appendLists(a, b *Cons) *Cons {
	if a == nil {
		return RetainCons(b)
	}
	elems := make([]Value, 0, a.Len())
	for n := a; n != nil; n = n.Tail {
		elems = append(elems, n.Head)
	}
	result := b
	for i := len(elems) - 1; i >= 0; i-- {
		result = NewCons(retainValue(elems[i]), result)
	}
	return result
}

func literalValue(lit bytecode.Literal) Value {
	switch lit.Kind {
	case bytecode.LitInt:
		return Integer(lit.Int)
	case bytecode.LitFloat:
		return Float(lit.Flt)
	case bytecode.LitBool:
		return Bool(lit.Bool)
	case bytecode.LitString:
		return NewString(lit.Str)
	case bytecode.LitSymbol:
		return Intern(lit.Str)
	case bytecode.LitNil:
		return (*Cons)(nil)
	default:
		return (*Cons)(nil)
	}
}

func arithName(op bytecode.Op) string {
	switch op {
	case bytecode.ADD:
		return "add"
	case bytecode.SUB:
		return "sub"
	case bytecode.MUL:
		return "mul"
	case bytecode.DIV:
		return "div"
	case bytecode.MOD:
		return "mod"
	}
	return "?"
}

func compareName(op bytecode.Op) string {
	switch op {
	case bytecode.LEQ:
		return "leq"
	case bytecode.LT:
		return "lt"
	case bytecode.GT:
		return "gt"
	case bytecode.GTE:
		return "gte"
	case bytecode.EQ:
		return "eq"
	case bytecode.NEQ:
		return "neq"
	}
	return "?"
}

// runFrame pushes fr (filling in its ReturnCode/ReturnAddr/StackBase from
// the VM's current position) to run body to completion, then pops and
// returns its single result. It is the synchronous "call a compiled body
// from Go code" entry point shared by RunClosure/CallNamed/CallClosureValue
// below, by the macro expander (compiler package), and by the higher-order
// builtins (map/filter/reduce/apply) in internal/builtin.
func (vm *VM) runFrame(fr *Frame, body []bytecode.Instruction) (Value, error) {
	fr.ReturnCode = vm.Code
	fr.ReturnAddr = vm.PC
	fr.StackBase = len(vm.Stack)
	vm.pushFrame(fr, body)
	if err := vm.Run(); err != nil {
		return nil, err
	}
	if len(vm.Stack) == 0 {
		return nil, nil
	}
	return vm.pop(), nil
}

// RunClosure runs body with args as its locals and no captured environment,
// used by the macro expander to execute a macro's compiled body against its
// unevaluated argument forms (§4.5 "macro expansion").
func (vm *VM) RunClosure(body []bytecode.Instruction, args []Value) (Value, error) {
	return vm.runFrame(&Frame{Locals: args, FuncName: "<call>", ArgCount: len(args)}, body)
}

// CallNamed invokes the function or builtin named name with args, exactly
// as the CALL opcode would (builtins are consulted first unless shadowed by
// a same-named user function), without needing the caller to push anything
// onto the value stack.
func (vm *VM) CallNamed(name string, args []Value) (Value, error) {
	if _, shadowed := vm.Functions[name]; !shadowed {
		if bf, ok := vm.Builtins[name]; ok {
			return bf(vm, args)
		}
	}
	code, ok := vm.Functions[name]
	if !ok {
		return nil, fmt.Errorf("undefined function %q", name)
	}
	return vm.runFrame(&Frame{Locals: args, FuncName: name, ArgCount: len(args)}, code)
}

// CallClosureValue invokes clo with args, validating arity and packing
// variadic rest arguments exactly as the CallClosure opcode path does.
func (vm *VM) CallClosureValue(clo *Closure, args []Value) (Value, error) {
	nreq := len(clo.Params)
	if clo.HasRest {
		if len(args) < nreq {
			return nil, fmt.Errorf("closure expects at least %d arguments, got %d", nreq, len(args))
		}
		rest := append([]Value{}, args[nreq:]...)
		var list *Cons
		for i := len(rest) - 1; i >= 0; i-- {
			list = NewCons(rest[i], list)
		}
		args = append(append([]Value{}, args[:nreq]...), Value(list))
	} else if len(args) != nreq {
		return nil, fmt.Errorf("closure expects %d arguments, got %d", nreq, len(args))
	}
	return vm.runFrame(&Frame{Locals: args, Captured: clo.Captured, FuncName: "<closure>", ArgCount: len(args)}, clo.Body)
}

// CallValue dispatches to CallNamed or CallClosureValue depending on v's
// runtime type, the Go-callable counterpart of the Apply opcode, used by
// builtins like map/filter/reduce that take a callable argument.
func (vm *VM) CallValue(v Value, args []Value) (Value, error) {
	switch fn := v.(type) {
	case *Function:
		return vm.CallNamed(fn.Name, args)
	case *Closure:
		return vm.CallClosureValue(fn, args)
	default:
		return nil, fmt.Errorf("cannot call a value of type %s", v.Type())
	}
}
