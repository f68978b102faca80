package machine

import (
	"fmt"
	"math/rand"

	"github.com/wisplang/wisp/internal/bytecode"
	"github.com/wisplang/wisp/internal/diag"
)

// BuiltinFunc is the signature every builtin function implements. args is
// owned by the caller and must not be retained beyond the call.
type BuiltinFunc func(vm *VM, args []Value) (Value, error)

// EvalHook re-enters parse+compile+execute for the Eval opcode/builtin and
// for LoadFile/RequireFile (§4.6 "Scoping of eval"). It is injected rather
// than imported directly so that this package never depends on the
// compiler or parser packages (which themselves depend on machine to run
// macro bodies) — the same callback-injection shape as the teacher's
// Thread.Load hook in lang/machine/thread.go.
type EvalHook func(vm *VM, source, filename string) (Value, error)

// LoadFileHook resolves and loads a source file for the load/require
// builtins, returning the value of its last top-level expression.
type LoadFileHook func(vm *VM, path string, dedupe bool) (Value, error)

// FuncSig is a named top-level function's parameter signature, used by the
// reflection builtins (function-arity, function-params) and populated from
// bytecode.Function.Params/HasRest by whichever driver loads a Program into
// this VM (see SetFunctionSig).
type FuncSig struct {
	Params  []string
	HasRest bool
}

// SetFunctionSig records name's parameter signature for later introspection.
func (vm *VM) SetFunctionSig(name string, params []string, hasRest bool) {
	if vm.FunctionSigs == nil {
		vm.FunctionSigs = map[string]FuncSig{}
	}
	vm.FunctionSigs[name] = FuncSig{Params: params, HasRest: hasRest}
}

// RuntimeError is a runtime failure (§4.4, §7): a message, an optional
// source location, and the call stack at the point of failure, innermost
// first.
type RuntimeError struct {
	Message string
	Line    int
	Col     int
	Stack   []string // function names, innermost first
	Hint    string
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Message)
	}
	return e.Message
}

// VM is the bytecode interpreter (§4.6): a value stack, a call stack of
// frames, a program counter, the function table, globals, module exports,
// and the process-wide resources (args, RNG, FFI handles, loaded-file set)
// a program may observe.
type VM struct {
	Stack  []Value
	Frames []*Frame

	PC   int
	Code []bytecode.Instruction

	Functions     map[string][]bytecode.Instruction
	FunctionSigs  map[string]FuncSig
	ModuleExports map[string]map[string]bool
	Globals       map[string]Value

	Builtins map[string]BuiltinFunc

	Args []string
	Rand *rand.Rand

	FFI *FFITable

	loadedFiles map[string]bool
	loadDirs    []string // not used: load/require resolve against the driver's fixed base directory

	Eval     EvalHook
	LoadFile LoadFileHook

	Stdout interface {
		Write([]byte) (int, error)
	}

	recursionGuard int
}

// New creates a VM with its function table seeded from user-compiled
// functions. A user function may shadow, but never removes, a same-named
// builtin: Call, and Apply on a Function value, consult the builtin table
// only when no user function of that name exists (see CallNamed).
func New(userFunctions map[string][]bytecode.Instruction) *VM {
	vm := &VM{
		Functions:     map[string][]bytecode.Instruction{},
		FunctionSigs:  map[string]FuncSig{},
		ModuleExports: map[string]map[string]bool{},
		Globals:       map[string]Value{},
		Builtins:      map[string]BuiltinFunc{},
		Rand:          rand.New(rand.NewSource(1)),
		FFI:           newFFITable(),
		loadedFiles:   map[string]bool{},
	}
	for name, code := range userFunctions {
		vm.Functions[name] = code
	}
	return vm
}

// PushFrame pushes a new call frame and switches execution to its code.
func (vm *VM) pushFrame(fr *Frame, code []bytecode.Instruction) {
	vm.Frames = append(vm.Frames, fr)
	vm.Code = code
	vm.PC = 0
}

// frame returns the currently executing frame.
func (vm *VM) frame() *Frame { return vm.Frames[len(vm.Frames)-1] }

// StackTrace returns the function names of the current call stack,
// innermost first (§4.4, §7).
func (vm *VM) StackTrace() []string {
	names := make([]string, len(vm.Frames))
	for i, fr := range vm.Frames {
		names[len(vm.Frames)-1-i] = fr.FuncName
	}
	return names
}

func (vm *VM) runtimeErrorAt(line, col int, format string, args ...interface{}) error {
	return &RuntimeError{
		Message: fmt.Sprintf(format, args...),
		Line:    line,
		Col:     col,
		Stack:   vm.StackTrace(),
	}
}

func (vm *VM) runtimeError(format string, args ...interface{}) error {
	line, col := 0, 0
	if vm.PC > 0 && vm.PC-1 < len(vm.Code) {
		line, col = vm.Code[vm.PC-1].Line, vm.Code[vm.PC-1].Col
	}
	return vm.runtimeErrorAt(line, col, format, args...)
}

// runtimeErrorWithHint is runtimeErrorAt plus an optional "did you mean %s?"
// suggestion appended to the message (SPEC_FULL.md §4.4 supplement).
func (vm *VM) runtimeErrorWithHint(line, col int, hint, format string, args ...interface{}) error {
	err := vm.runtimeErrorAt(line, col, format, args...).(*RuntimeError)
	if hint != "" {
		err.Hint = hint
		err.Message = fmt.Sprintf("%s (did you mean %q?)", err.Message, hint)
	}
	return err
}

// suggestGlobal searches, in order, the current frame's captured names,
// then all known globals, then all registered builtins, for the closest
// match to name (SPEC_FULL.md §4.4 supplement: "search order across binding
// sets").
func (vm *VM) suggestGlobal(name string) string {
	var candidates []string
	if len(vm.Frames) > 0 {
		for _, c := range vm.frame().Captured {
			candidates = append(candidates, c.Name)
		}
	}
	for g := range vm.Globals {
		candidates = append(candidates, g)
	}
	for b := range vm.Builtins {
		candidates = append(candidates, b)
	}
	return diag.Suggest(name, candidates)
}
