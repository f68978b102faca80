package machine

import "github.com/wisplang/wisp/internal/bytecode"

// Frame is one activation record (§3 "Call frames", GLOSSARY "Frame").
type Frame struct {
	ReturnAddr int                   // instruction index to resume the caller at
	ReturnCode []bytecode.Instruction // the caller's bytecode, restored on Ret
	Locals     []Value               // arguments, mutated in place by SetLocal/Recur
	FuncName   string                // for stack traces
	Captured   []CapturedPair        // copied from the invoked closure; empty for named functions
	StackBase  int                   // value-stack height at frame entry
	ArgCount   int                   // number of arguments the caller actually passed, before any rest-packing; used by CheckArity to select the matching clause of a multi-clause function

	// Loop/recur bookkeeping (§4.6 "Loop/recur"); HasLoop is false until the
	// frame's body executes a BeginLoop.
	HasLoop           bool
	LoopStart         int
	LoopBindingsStart int
	LoopBindingsCount int
}
