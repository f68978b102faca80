package compiler

// funcScope tracks the lexical bindings visible while compiling one
// function or closure body: its parameters/let/loop-introduced locals
// (which all live in the same flat runtime Frame.Locals array, §3) and, for
// closures, the ordered captured environment copied in from the enclosing
// scope (§3 "Captured environment").
//
// `let`/`loop` bodies are nested blocks, not new functions, so they share
// this one funcScope rather than pushing a new one; compileLet/compileLoop
// call snapshotLocals before declaring their bindings and restoreLocals
// once their body is compiled, so a binding that shadows an outer name (a
// parameter, an outer `let`, another `loop`) is only visible for the
// extent of that block, exactly as spec.md's balanced-frame `let`/`loop`
// requires (§4.5, "Slide(n)").
type funcScope struct {
	locals    map[string]int
	nextLocal int

	captured      map[string]int
	capturedOrder []string

	loopDepth int
}

func newFuncScope() *funcScope {
	return &funcScope{locals: map[string]int{}, captured: map[string]int{}}
}

func (fs *funcScope) declareLocal(name string) int {
	idx := fs.nextLocal
	fs.locals[name] = idx
	fs.nextLocal++
	return idx
}

func (fs *funcScope) resolveLocal(name string) (int, bool) {
	idx, ok := fs.locals[name]
	return idx, ok
}

func (fs *funcScope) resolveCaptured(name string) (int, bool) {
	idx, ok := fs.captured[name]
	return idx, ok
}

// snapshotLocals copies the current name->slot bindings so they can later be
// restored with restoreLocals, bracketing a `let`/`loop` block's bindings so
// they don't leak into the rest of the enclosing function body.
func (fs *funcScope) snapshotLocals() map[string]int {
	saved := make(map[string]int, len(fs.locals))
	for k, v := range fs.locals {
		saved[k] = v
	}
	return saved
}

// restoreLocals undoes every declareLocal call made since the matching
// snapshotLocals, including the compile-time slot counter, so that a slot
// freed by a block's runtime Slide(n) (see compileLet/compileLoop) is
// reused by the next declareLocal rather than left to grow forever.
func (fs *funcScope) restoreLocals(saved map[string]int, nextLocal int) {
	fs.locals = saved
	fs.nextLocal = nextLocal
}

func (c *Compiler) cur() *funcScope { return c.funcs[len(c.funcs)-1] }

func (c *Compiler) pushScope(fs *funcScope) { c.funcs = append(c.funcs, fs) }

func (c *Compiler) popScope() { c.funcs = c.funcs[:len(c.funcs)-1] }
