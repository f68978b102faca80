package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisplang/wisp/internal/builtin"
	"github.com/wisplang/wisp/internal/bytecode"
	"github.com/wisplang/wisp/internal/compiler"
	"github.com/wisplang/wisp/internal/machine"
	"github.com/wisplang/wisp/internal/parser"
)

// runSource parses, compiles and runs src against a fresh VM with the full
// builtin table installed, returning the value left on the stack.
func runSource(t *testing.T, src string) (machine.Value, *bytecode.Program) {
	t.Helper()
	forms, err := parser.ParseString("<test>", src)
	require.NoError(t, err)

	vm := machine.New(nil)
	builtin.Register(vm)

	prog, err := compiler.New(vm.Builtins).Compile(forms)
	require.NoError(t, err)

	result, err := vm.RunProgram(prog)
	require.NoError(t, err)
	return result, prog
}

// TestFactorialHasNoTailCall is seed scenario 1 (§8): a non-tail-recursive
// factorial evaluates correctly and its compiled body contains no TailCall,
// since the recursive call sits inside a multiplication, not in tail
// position.
func TestFactorialHasNoTailCall(t *testing.T) {
	result, prog := runSource(t, `
		(defun fact (n) (if (<= n 1) 1 (* n (fact (- n 1)))))
		(fact 5)
	`)
	require.Equal(t, machine.Integer(120), result)

	fn := prog.Lookup("fact")
	require.NotNil(t, fn)
	for _, insn := range fn.Code {
		require.NotEqual(t, bytecode.TAILCALL, insn.Op, "fact must not contain a tail call")
	}
}

// TestCountdownTailCalls is seed scenario 2 (§8): a self-recursive call in
// tail position compiles to TailCall and a large iteration count (5000)
// runs to completion and returns 999.
func TestCountdownTailCalls(t *testing.T) {
	forms, err := parser.ParseString("<test>", `
		(defun countdown (n) (if (<= n 0) 999 (countdown (- n 1))))
		(countdown 5000)
	`)
	require.NoError(t, err)

	vm := machine.New(nil)
	builtin.Register(vm)
	prog, err := compiler.New(vm.Builtins).Compile(forms)
	require.NoError(t, err)

	fn := prog.Lookup("countdown")
	require.NotNil(t, fn)
	var sawTailCall bool
	for _, insn := range fn.Code {
		if insn.Op == bytecode.TAILCALL {
			sawTailCall = true
			require.Equal(t, "countdown", insn.Name)
			require.Equal(t, 1, insn.Argc)
		}
	}
	require.True(t, sawTailCall)

	result, err := vm.RunProgram(prog)
	require.NoError(t, err)
	require.Equal(t, machine.Integer(999), result)
}

// TestModuleQualifiedNames is seed scenario 3 (§8): a module-qualified
// function is stored under "module/name" and the unqualified name is
// absent from the function table.
func TestModuleQualifiedNames(t *testing.T) {
	result, prog := runSource(t, `
		(module math (export add) (defun add (x y) (+ x y)))
		(math/add 1 2)
	`)
	require.Equal(t, machine.Integer(3), result)
	require.NotNil(t, prog.Lookup("math/add"))
	require.Nil(t, prog.Lookup("add"))
}

// TestVariadicSumEquivalence is seed scenario 4 (§8): a pure-variadic
// function declared with the zero-head dotted param spec "(. xs)" sums its
// arguments recursively via apply/cdr.
func TestVariadicSumEquivalence(t *testing.T) {
	result, _ := runSource(t, `
		(defun sum (. xs) (if (null? xs) 0 (+ (car xs) (apply sum (cdr xs)))))
		(sum 1 2 3 4)
	`)
	require.Equal(t, machine.Integer(10), result)
}

// TestUnlessMacro is seed scenario 5 (§8): a user-defined macro expands at
// compile time and its expansion runs normally.
func TestUnlessMacro(t *testing.T) {
	result, _ := runSource(t, `
		(defmacro unless (c b) (list 'if c false b))
		(unless false 42)
	`)
	require.Equal(t, machine.Integer(42), result)
}

// TestUndefinedIdentifierSuggestsNearMatch is invariant 6 (§8): referencing
// an unbound name is a compile error mentioning "Undefined" and, when a
// near-miss binding exists, its name.
func TestUndefinedIdentifierSuggestsNearMatch(t *testing.T) {
	forms, err := parser.ParseString("<test>", `
		(defun add-one (n) (+ n 1))
		(add-onee 5)
	`)
	require.NoError(t, err)

	vm := machine.New(nil)
	builtin.Register(vm)
	_, err = compiler.New(vm.Builtins).Compile(forms)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Undefined")
	require.Contains(t, err.Error(), "add-one")
}

// TestLetShadowingIsBlockScoped is the balanced-frame half of §4.5 "let":
// a binding that shadows an outer name is only visible inside the let body;
// a reference to the same name afterward resolves to the original slot.
func TestLetShadowingIsBlockScoped(t *testing.T) {
	result, _ := runSource(t, `
		(defun f (x)
			(let ((x 10)) x)
			x)
		(f 999)
	`)
	require.Equal(t, machine.Integer(999), result)
}

// TestLoopShadowingIsBlockScoped is the same property for "loop" (§4.5):
// the loop's own binding must not leak into code that follows it, whether
// or not the loop ever recurs.
func TestLoopShadowingIsBlockScoped(t *testing.T) {
	result, _ := runSource(t, `
		(defun f (x)
			(loop ((x 10)) x)
			x)
		(f 42)
	`)
	require.Equal(t, machine.Integer(42), result)
}

// TestLetSequentialBindingsDontCollide exercises Slide(n) actually freeing
// the let's binding slots: two sibling lets each shadowing the same outer
// name, one after another, must each see only their own value.
func TestLetSequentialBindingsDontCollide(t *testing.T) {
	result, _ := runSource(t, `
		(defun f (x)
			(+ (let ((x 1)) x) (let ((x 2)) x) x))
		(f 100)
	`)
	require.Equal(t, machine.Integer(103), result)
}

// TestDefunMatchLiteralDispatch exercises §4.5 "Pattern matching
// (multi-clause defun)": clauses are tried in order, each clause's literal
// pattern either matches or falls through to the next, and the final
// variable-pattern clause catches everything else.
func TestDefunMatchLiteralDispatch(t *testing.T) {
	result, _ := runSource(t, `
		(defun-match fib
			((0) 0)
			((1) 1)
			((n) (+ (fib (- n 1)) (fib (- n 2)))))
		(fib 10)
	`)
	require.Equal(t, machine.Integer(55), result)
}

// TestDefunMatchListDestructuring exercises the EmptyList and DottedList
// pattern shapes: a clause matching "()" and a clause destructuring
// "(h . t)" into a bound head and a bound rest-of-list.
func TestDefunMatchListDestructuring(t *testing.T) {
	result, _ := runSource(t, `
		(defun-match my-length
			((()) 0)
			(((h . t)) (+ 1 (my-length t))))
		(my-length (list 1 2 3 4 5))
	`)
	require.Equal(t, machine.Integer(5), result)
}

// TestDefunMatchNoClauseMatches is the runtime-error side of §4.5 "if none
// match, the function emits a runtime error": every clause's pattern fails
// and the call aborts instead of silently falling through.
func TestDefunMatchNoClauseMatches(t *testing.T) {
	forms, err := parser.ParseString("<test>", `
		(defun-match only-zero
			((0) true))
		(only-zero 7)
	`)
	require.NoError(t, err)

	vm := machine.New(nil)
	builtin.Register(vm)
	prog, err := compiler.New(vm.Builtins).Compile(forms)
	require.NoError(t, err)

	_, err = vm.RunProgram(prog)
	require.Error(t, err)
}

// TestApplyEquivalence is invariant 7 (§8): (apply f (list args...)) agrees
// with a direct call for both a user-defined function and a builtin given as
// a first-class value.
func TestApplyEquivalence(t *testing.T) {
	direct, _ := runSource(t, `
		(defun add3 (a b c) (+ a b c))
		(add3 1 2 3)
	`)
	applied, _ := runSource(t, `
		(defun add3 (a b c) (+ a b c))
		(apply add3 (list 1 2 3))
	`)
	require.Equal(t, direct, applied)

	viaOp, _ := runSource(t, `(apply + (list 1 2 3 4))`)
	require.Equal(t, machine.Integer(10), viaOp)
}

// TestIterativeListDrop is invariant 4 / seed scenario 7 (§8): building and
// dropping a long list does not exhaust the native stack, since ReleaseCons
// walks the spine iteratively rather than recursing per cell.
func TestIterativeListDrop(t *testing.T) {
	result, _ := runSource(t, `
		(defun build (n acc) (if (<= n 0) acc (build (- n 1) (cons n acc))))
		(list-length (build 200000 (list)))
	`)
	require.Equal(t, machine.Integer(200000), result)
}
