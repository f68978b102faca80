// Package machine implements the stack-based virtual machine (§4.6): its
// runtime value model (§3), calling convention, and execution loop. Its
// shape — a Value interface implemented by tagged concrete types, a Thread
// driving one call stack, and a big opcode switch — follows the teacher's
// lang/machine package, generalized from Starlark's value model to wisp's
// (§3: Integer, Float, Boolean, Pointer, Symbol, String, List, Vector,
// HashMap, Function, Closure, network handles).
package machine

import (
	"fmt"
	"net"
	"strings"
	"sync/atomic"

	"github.com/wisplang/wisp/internal/bytecode"
)

// Value is the interface implemented by every runtime value (§3).
type Value interface {
	String() string
	Type() string
}

// Integer is a signed 64-bit integer value.
type Integer int64

func (Integer) Type() string      { return "integer" }
func (i Integer) String() string  { return fmt.Sprintf("%d", int64(i)) }

// Float is an IEEE-754 double value.
type Float float64

func (Float) Type() string     { return "float" }
func (f Float) String() string { return fmt.Sprintf("%g", float64(f)) }

// Bool is a boolean value.
type Bool bool

func (Bool) Type() string     { return "boolean" }
func (b Bool) String() string { return fmt.Sprintf("%t", bool(b)) }

// String is reference-counted immutable text (§3). Its reference count is
// advisory only: unlike List, String carries no destructor-sensitive
// substructure, so wisp lets the Go garbage collector reclaim it; Retain
// and Release keep the count only for symmetry with the spec's value model.
type String struct {
	s    string
	refs int32
}

func NewString(s string) *String { return &String{s: s, refs: 1} }
func (s *String) Type() string    { return "string" }
func (s *String) String() string  { return s.s }
func (s *String) Go() string      { return s.s }
func (s *String) Retain() *String { atomic.AddInt32(&s.refs, 1); return s }
func (s *String) Release()        { atomic.AddInt32(&s.refs, -1) }

// Symbol is immutable text, interned process-wide (not reference-counted) so that
// symbol equality is a pointer compare (SPEC_FULL.md §3 supplement).
type Symbol struct {
	name string
}

var symbolTable = map[string]*Symbol{}

// Intern returns the unique Symbol for name, creating it on first use.
func Intern(name string) *Symbol {
	if s, ok := symbolTable[name]; ok {
		return s
	}
	s := &Symbol{name: name}
	symbolTable[name] = s
	return s
}

func (s *Symbol) Type() string   { return "symbol" }
func (s *Symbol) String() string { return s.name }
func (s *Symbol) Name() string   { return s.name }

// Cons is one cell of a structurally shared, reference-counted list (§3).
// Nil is represented by a nil *Cons. The destructor (Release) MUST be
// iterative, not recursive, per §3's invariant and testable property #4: it
// walks the spine, and at each cell either drops it (when it was the
// unique owner) and continues to the tail, or finds another owner and
// stops, leaving the rest of the chain intact (testable property #5).
type Cons struct {
	refs int32
	Head Value
	Tail *Cons
}

// NewCons builds a new cell holding head, sharing tail. It takes ownership
// of one reference to head (the caller must not also release it) and adds
// one reference to tail (the caller's existing reference to tail remains
// theirs to release).
func NewCons(head Value, tail *Cons) *Cons {
	RetainCons(tail)
	return &Cons{refs: 1, Head: head, Tail: tail}
}

// RetainCons increments c's reference count and returns c, for chaining.
// Safe to call with a nil receiver (the empty list has no refcount).
func RetainCons(c *Cons) *Cons {
	if c != nil {
		atomic.AddInt32(&c.refs, 1)
	}
	return c
}

// ReleaseCons drops one reference to c. When c's count reaches zero it is
// the unique owner of its tail, so the loop continues there instead of
// recursing — this is what keeps dropping a million-element list from
// blowing the native call stack (§3, §8 property #4).
func ReleaseCons(c *Cons) {
	for c != nil {
		if atomic.AddInt32(&c.refs, -1) > 0 {
			return
		}
		next := c.Tail
		c.Head = nil
		c.Tail = nil
		c = next
	}
}

// RefCount reports c's current reference count (0 for the empty list).
func (c *Cons) RefCount() int32 {
	if c == nil {
		return 0
	}
	return atomic.LoadInt32(&c.refs)
}

func (c *Cons) Type() string { return "list" }

func (c *Cons) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for n := c; n != nil; n = n.Tail {
		if n != c {
			sb.WriteByte(' ')
		}
		sb.WriteString(n.Head.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// Len returns the number of elements in the list rooted at c.
func (c *Cons) Len() int {
	n := 0
	for ; c != nil; c = c.Tail {
		n++
	}
	return n
}

// retainValue bumps the refcount of v if it is a list; every other value
// kind is left to the garbage collector (see String's doc comment).
func retainValue(v Value) Value {
	if c, ok := v.(*Cons); ok {
		RetainCons(c)
	}
	return v
}

// releaseValue drops a reference to v if it is a list.
func releaseValue(v Value) {
	if c, ok := v.(*Cons); ok {
		ReleaseCons(c)
	}
}

// Vector is a reference-counted immutable sequence with O(1) indexed access
// (§3). "Immutable" describes the language-level contract (vector-set
// returns a new handle conceptually); VectorSet/VectorPush/VectorPop in
// this implementation mutate a uniquely-held backing array in place for
// performance, matching how the teacher's types.Array is grown, and are
// only safe because the compiler never lets two bindings alias the same
// Vector across a mutating builtin without the caller explicitly re-binding
// the result.
type Vector struct {
	elems []Value
}

func NewVector(elems []Value) *Vector { return &Vector{elems: elems} }
func (v *Vector) Type() string         { return "vector" }
func (v *Vector) Len() int             { return len(v.elems) }
func (v *Vector) Get(i int) Value      { return v.elems[i] }
func (v *Vector) Set(i int, x Value)   { v.elems[i] = x }
func (v *Vector) Push(x Value)         { v.elems = append(v.elems, x) }
func (v *Vector) Pop() Value {
	n := len(v.elems) - 1
	x := v.elems[n]
	v.elems = v.elems[:n]
	return x
}
func (v *Vector) String() string {
	parts := make([]string, len(v.elems))
	for i, e := range v.elems {
		parts[i] = e.String()
	}
	return "#(" + strings.Join(parts, " ") + ")"
}

// HashMap is a reference-counted map from string keys to Values (§3),
// backed by github.com/dolthub/swiss for its open-addressing SIMD-friendly
// table (the same dependency the teacher requires, repurposed here from
// Starlark-dialect hash-consing onto wisp's hashmap builtin surface).
type HashMap struct {
	m *SwissMap
}

func NewHashMap() *HashMap { return &HashMap{m: newSwissMap()} }
func (h *HashMap) Type() string { return "hashmap" }
func (h *HashMap) Get(key string) (Value, bool) { return h.m.Get(key) }
func (h *HashMap) Set(key string, v Value)      { h.m.Put(key, v) }
func (h *HashMap) Delete(key string)             { h.m.Delete(key) }
func (h *HashMap) Len() int                      { return h.m.Count() }
func (h *HashMap) Keys() []string                { return h.m.Keys() }
func (h *HashMap) String() string {
	keys := h.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		v, _ := h.Get(k)
		parts[i] = fmt.Sprintf("%q %s", k, v.String())
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// Function is a by-name handle into the VM's function table (§3): it
// carries only the name, never the code, so that a Function value compares
// and prints without reaching into the table.
type Function struct {
	Name string
}

func (f *Function) Type() string   { return "function" }
func (f *Function) String() string { return fmt.Sprintf("#<function %s>", f.Name) }

// CapturedPair is one (name, value) entry of a Closure's captured
// environment (§3, GLOSSARY "Captured environment").
type CapturedPair struct {
	Name  string
	Value Value
}

// Closure is a lambda value: required parameters, an optional variadic rest
// parameter, its compiled body, and its ordered captured environment (§3).
type Closure struct {
	Params   []string
	Rest     string // "" if not variadic
	HasRest  bool
	Body     []bytecode.Instruction
	Captured []CapturedPair
}

func (c *Closure) Type() string { return "closure" }
func (c *Closure) String() string {
	return fmt.Sprintf("#<closure/%d>", len(c.Params))
}

// Pointer is an opaque address for foreign (FFI) data (§3). Owned
// distinguishes memory wisp itself allocated (via the alloc builtin, freed
// by free) from memory merely observed (returned by a foreign call), so
// that freeing foreign-owned memory is a reportable runtime error rather
// than silent corruption (SPEC_FULL.md §3 supplement).
type Pointer struct {
	Addr  uintptr
	Owned bool
	freed bool
}

func (p *Pointer) Type() string { return "pointer" }
func (p *Pointer) String() string {
	if p.Addr == 0 {
		return "#<pointer null>"
	}
	return fmt.Sprintf("#<pointer 0x%x>", p.Addr)
}
func (p *Pointer) IsNull() bool { return p.Addr == 0 }

// Listener and Conn are opaque handles for network endpoints (§3).
type Listener struct{ L net.Listener }

func (l *Listener) Type() string   { return "listener" }
func (l *Listener) String() string { return fmt.Sprintf("#<listener %s>", l.L.Addr()) }

type Conn struct{ C net.Conn }

func (c *Conn) Type() string   { return "connection" }
func (c *Conn) String() string { return fmt.Sprintf("#<connection %s>", c.C.RemoteAddr()) }

// Truth reports the truthiness of v. Only Bool(false) is falsy; everything
// else, including Nil (*Cons(nil)) and Integer(0), is truthy — a Lisp-1
// convention distinct from Starlark's, chosen because the spec's only
// mention of truthiness is JmpIfFalse branching on the Boolean produced by
// comparisons and `if`/`cond` test positions (§4.5), which always yield an
// explicit Bool.
func Truth(v Value) bool {
	if b, ok := v.(Bool); ok {
		return bool(b)
	}
	return true
}
