// Package ast defines the abstract-syntax representation produced by the
// parser: a small tagged variant of node kinds, each carrying a source
// Position, following the shape of the teacher's lang/ast package.
package ast

import (
	"fmt"
	"strings"

	"github.com/wisplang/wisp/internal/token"
)

// A Node is one parsed form. Exactly one of the typed fields is meaningful,
// selected by Kind — a tagged variant rather than an interface hierarchy,
// matching the value model's own tagged-union style (spec §3).
type Node struct {
	Kind Kind
	Pos  token.Position

	Int  int64   // Kind == Int
	Flt  float64 // Kind == Float
	Bool bool    // Kind == Bool
	Str  string  // Kind == Str
	Sym  string  // Kind == Symbol

	List  []*Node // Kind == List or Vector
	Final *Node   // Kind == DottedList: the tail after the dot
}

// Kind identifies the variant of a Node.
type Kind int8

const (
	Int Kind = iota
	Float
	Bool
	Str
	Symbol
	List
	DottedList
	Vector
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Str:
		return "string"
	case Symbol:
		return "symbol"
	case List:
		return "list"
	case DottedList:
		return "dotted-list"
	case Vector:
		return "vector"
	}
	return "unknown"
}

// IsAtom reports whether n is a leaf node (not List/DottedList/Vector).
func (n *Node) IsAtom() bool {
	switch n.Kind {
	case List, DottedList, Vector:
		return false
	default:
		return true
	}
}

// String renders n back to wisp source syntax.
func (n *Node) String() string {
	switch n.Kind {
	case Int:
		return fmt.Sprintf("%d", n.Int)
	case Float:
		return fmt.Sprintf("%g", n.Flt)
	case Bool:
		if n.Bool {
			return "true"
		}
		return "false"
	case Str:
		return fmt.Sprintf("%q", n.Str)
	case Symbol:
		return n.Sym
	case List:
		parts := make([]string, len(n.List))
		for i, c := range n.List {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, " ") + ")"
	case DottedList:
		parts := make([]string, len(n.List))
		for i, c := range n.List {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, " ") + " . " + n.Final.String() + ")"
	case Vector:
		parts := make([]string, len(n.List))
		for i, c := range n.List {
			parts[i] = c.String()
		}
		return "#(" + strings.Join(parts, " ") + ")"
	}
	return "<?>"
}

// MkSym builds a Symbol node.
func MkSym(pos token.Position, name string) *Node {
	return &Node{Kind: Symbol, Sym: name, Pos: pos}
}

// MkList builds a List node.
func MkList(pos token.Position, elems ...*Node) *Node {
	return &Node{Kind: List, List: elems, Pos: pos}
}
