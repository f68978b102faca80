package compiler

import (
	"fmt"

	"github.com/wisplang/wisp/internal/ast"
	"github.com/wisplang/wisp/internal/machine"
	"github.com/wisplang/wisp/internal/token"
)

// astToValue converts a parsed form into the runtime value macros see when
// they receive it as unevaluated data (§4.5 "macro expansion"). Only proper
// lists are representable as Cons chains (Cons.Tail is itself *Cons, not a
// general Value), so a dotted-list literal's final element is appended as
// an ordinary last element rather than a genuine improper pair — a
// deliberate narrowing from "cons cell" to "cons list".
func astToValue(n *ast.Node) machine.Value {
	switch n.Kind {
	case ast.Int:
		return machine.Integer(n.Int)
	case ast.Float:
		return machine.Float(n.Flt)
	case ast.Bool:
		return machine.Bool(n.Bool)
	case ast.Str:
		return machine.NewString(n.Str)
	case ast.Symbol:
		return machine.Intern(n.Sym)
	case ast.Vector:
		elems := make([]machine.Value, len(n.List))
		for i, e := range n.List {
			elems[i] = astToValue(e)
		}
		return machine.NewVector(elems)
	case ast.List:
		return listToValue(n.List, nil)
	case ast.DottedList:
		return listToValue(n.List, n.Final)
	}
	return (*machine.Cons)(nil)
}

func listToValue(elems []*ast.Node, final *ast.Node) *machine.Cons {
	var tail *machine.Cons
	if final != nil {
		if c, ok := astToValue(final).(*machine.Cons); ok {
			tail = c
		} else {
			tail = machine.NewCons(astToValue(final), nil)
		}
	}
	var list *machine.Cons
	start := tail
	for i := len(elems) - 1; i >= 0; i-- {
		start = machine.NewCons(astToValue(elems[i]), start)
	}
	list = start
	return list
}

// valueToAst converts a macro expansion's result value back into a form the
// compiler can compile, the inverse of astToValue.
func valueToAst(v machine.Value, pos token.Position) (*ast.Node, error) {
	switch x := v.(type) {
	case machine.Integer:
		return &ast.Node{Kind: ast.Int, Int: int64(x), Pos: pos}, nil
	case machine.Float:
		return &ast.Node{Kind: ast.Float, Flt: float64(x), Pos: pos}, nil
	case machine.Bool:
		return &ast.Node{Kind: ast.Bool, Bool: bool(x), Pos: pos}, nil
	case *machine.String:
		return &ast.Node{Kind: ast.Str, Str: x.Go(), Pos: pos}, nil
	case *machine.Symbol:
		return ast.MkSym(pos, x.Name()), nil
	case *machine.Vector:
		elems := make([]*ast.Node, x.Len())
		for i := 0; i < x.Len(); i++ {
			e, err := valueToAst(x.Get(i), pos)
			if err != nil {
				return nil, err
			}
			elems[i] = e
		}
		return &ast.Node{Kind: ast.Vector, List: elems, Pos: pos}, nil
	case *machine.Cons:
		var elems []*ast.Node
		for n := x; n != nil; n = n.Tail {
			e, err := valueToAst(n.Head, pos)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		return ast.MkList(pos, elems...), nil
	case nil:
		return ast.MkList(pos), nil
	default:
		return nil, fmt.Errorf("macro expansion produced a value of type %s that cannot be re-read as code", v.Type())
	}
}
