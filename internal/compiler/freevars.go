package compiler

import "github.com/wisplang/wisp/internal/ast"

// freeVars collects every symbol referenced anywhere within n — including
// inside nested let/loop/lambda bodies — that is not bound by some binder
// within n itself, threading the accumulating bound-set through nested
// binders so that shadowing is respected. It is the single analysis pass
// compileLambda uses to compute a closure's transitive capture set: because
// it walks all the way into nested lambdas, a name only a grandchild
// closure needs is still reported free at this level, so the immediately
// enclosing lambda captures and re-exposes it.
func freeVars(n *ast.Node, bound map[string]bool) map[string]bool {
	out := map[string]bool{}
	walkFree(n, bound, out)
	return out
}

// freeVarsSeq is freeVars over a sequence of forms sharing one bound set
// (a lambda's body), used by compileLambda to compute the whole body's
// capture set in one pass.
func freeVarsSeq(forms []*ast.Node, bound map[string]bool) map[string]bool {
	out := map[string]bool{}
	for _, f := range forms {
		walkFree(f, bound, out)
	}
	return out
}

func walkFree(n *ast.Node, bound map[string]bool, out map[string]bool) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.Symbol:
		if !bound[n.Sym] {
			out[n.Sym] = true
		}
	case ast.Vector:
		for _, e := range n.List {
			walkFree(e, bound, out)
		}
	case ast.DottedList:
		for _, e := range n.List {
			walkFree(e, bound, out)
		}
		walkFree(n.Final, bound, out)
	case ast.List:
		if len(n.List) == 0 {
			return
		}
		head := n.List[0]
		if head.Kind == ast.Symbol {
			switch head.Sym {
			case "quote":
				return // quoted data is never a variable reference
			case "lambda", "fn":
				if len(n.List) >= 2 {
					walkFreeBinder(n.List[1], n.List[2:], bound, out)
				}
				return
			case "let":
				if len(n.List) >= 2 {
					walkFreeLet(n.List[1], n.List[2:], bound, out)
				}
				return
			case "loop":
				if len(n.List) >= 2 {
					walkFreeLet(n.List[1], n.List[2:], bound, out)
				}
				return
			}
		}
		for _, e := range n.List {
			walkFree(e, bound, out)
		}
	}
}

// walkFreeBinder handles (lambda params body...): params is either a bare
// symbol (fully variadic), a list of symbols, or a dotted list ending in a
// rest symbol.
func walkFreeBinder(params *ast.Node, body []*ast.Node, bound map[string]bool, out map[string]bool) {
	inner := map[string]bool{}
	for k, v := range bound {
		inner[k] = v
	}
	switch params.Kind {
	case ast.Symbol:
		inner[params.Sym] = true
	case ast.List:
		for _, p := range params.List {
			inner[p.Sym] = true
		}
	case ast.DottedList:
		for _, p := range params.List {
			inner[p.Sym] = true
		}
		inner[params.Final.Sym] = true
	}
	for _, b := range body {
		walkFree(b, inner, out)
	}
}

// walkFreeLet handles (let ((name val) ...) body...) and (loop ((name
// val)...) body...): each binding's value expression is walked with the
// outer names plus the bindings before it in scope (sequential let
// semantics: later bindings see earlier ones), and the body sees all of them.
func walkFreeLet(bindings *ast.Node, body []*ast.Node, bound map[string]bool, out map[string]bool) {
	inner := map[string]bool{}
	for k, v := range bound {
		inner[k] = v
	}
	if bindings.Kind == ast.List {
		for _, b := range bindings.List {
			if b.Kind == ast.List && len(b.List) == 2 {
				walkFree(b.List[1], inner, out)
				inner[b.List[0].Sym] = true
			}
		}
	}
	for _, b := range body {
		walkFree(b, inner, out)
	}
}
