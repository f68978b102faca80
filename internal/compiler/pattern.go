package compiler

import (
	"fmt"

	"github.com/wisplang/wisp/internal/ast"
	"github.com/wisplang/wisp/internal/bytecode"
)

// clausePattern is one defun-match clause's parameter-position patterns
// (§4.5 "Pattern matching (multi-clause defun)"): a fixed prefix of one
// pattern per required argument, plus an optional rest pattern bound to
// every argument beyond the prefix. The parameter spec as a whole may also
// be a bare symbol, meaning "fully variadic, no fixed prefix" (mirroring
// parseParamSpec's handling of plain defun/lambda).
type clausePattern struct {
	prefix []*ast.Node
	rest   *ast.Node // nil when the clause has no rest parameter
}

func parseClausePatterns(n *ast.Node) (clausePattern, error) {
	switch n.Kind {
	case ast.Symbol:
		return clausePattern{rest: n}, nil
	case ast.List:
		return clausePattern{prefix: n.List}, nil
	case ast.DottedList:
		return clausePattern{prefix: n.List, rest: n.Final}, nil
	}
	return clausePattern{}, fmt.Errorf("invalid defun-match parameter pattern")
}

// carChain builds the code to step i cdrs and then take the car — i.e. the
// i-th element of the list currently addressed by whatever code precedes it
// (§4.5 "ValueLocation ... ListElement(inner, i): load inner, then step cdr
// i times, then car").
func carChain(i int) []bytecode.Instruction {
	code := make([]bytecode.Instruction, 0, i+1)
	for j := 0; j < i; j++ {
		code = append(code, bytecode.Instruction{Op: bytecode.CDR})
	}
	return append(code, bytecode.Instruction{Op: bytecode.CAR})
}

// cdrChain builds the code to step k cdrs without a final car — the
// remainder after a k-element prefix (§4.5 "ListRest(inner, skip)").
func cdrChain(k int) []bytecode.Instruction {
	code := make([]bytecode.Instruction, 0, k)
	for j := 0; j < k; j++ {
		code = append(code, bytecode.Instruction{Op: bytecode.CDR})
	}
	return code
}

// compilePattern emits the test-and-bind sequence for one pattern position
// (§4.5): loadCode is the instruction sequence that leaves the value this
// pattern matches against on top of the stack. Every test instruction that
// can fail appends its own index (within *code, before the instruction is
// appended) to *failJumps so the caller can later patch all of them to the
// "try next clause" address, exactly as compileDefunMatch already does for
// its CheckArity guard.
func (c *Compiler) compilePattern(pat *ast.Node, loadCode []bytecode.Instruction, code *[]bytecode.Instruction, failJumps *[]int) error {
	testEq := func(lit bytecode.Literal) {
		*code = append(*code, loadCode...)
		*code = append(*code, bytecode.Instruction{Op: bytecode.PUSH, Lit: lit})
		*code = append(*code, bytecode.Instruction{Op: bytecode.EQ})
		*failJumps = append(*failJumps, len(*code))
		*code = append(*code, bytecode.Instruction{Op: bytecode.JMPIFFALSE})
	}

	switch pat.Kind {
	case ast.Symbol:
		if pat.Sym == "_" {
			return nil // Wildcard: no test, no binding.
		}
		// Variable: bind this position's value to a fresh local.
		*code = append(*code, loadCode...)
		idx := c.cur().declareLocal(pat.Sym)
		*code = append(*code, bytecode.Instruction{Op: bytecode.SETLOCAL, N: idx})
		return nil

	case ast.Int:
		testEq(bytecode.Literal{Kind: bytecode.LitInt, Int: pat.Int})
		return nil
	case ast.Float:
		testEq(bytecode.Literal{Kind: bytecode.LitFloat, Flt: pat.Flt})
		return nil
	case ast.Bool:
		testEq(bytecode.Literal{Kind: bytecode.LitBool, Bool: pat.Bool})
		return nil
	case ast.Str:
		testEq(bytecode.Literal{Kind: bytecode.LitString, Str: pat.Str})
		return nil

	case ast.List:
		if len(pat.List) == 0 {
			// EmptyList: test for Nil.
			testEq(bytecode.Literal{Kind: bytecode.LitNil})
			return nil
		}
		if pat.List[0].Kind == ast.Symbol && pat.List[0].Sym == "quote" &&
			len(pat.List) == 2 && pat.List[1].Kind == ast.Symbol {
			// QuotedSymbol: 'sym tests equality against the literal symbol.
			testEq(bytecode.Literal{Kind: bytecode.LitSymbol, Str: pat.List[1].Sym})
			return nil
		}
		// Fixed-length List pattern: test length, then recurse element-wise.
		*code = append(*code, loadCode...)
		*code = append(*code, bytecode.Instruction{Op: bytecode.LISTLENGTH})
		*code = append(*code, bytecode.Instruction{Op: bytecode.PUSH, Lit: bytecode.Literal{Kind: bytecode.LitInt, Int: int64(len(pat.List))}})
		*code = append(*code, bytecode.Instruction{Op: bytecode.EQ})
		*failJumps = append(*failJumps, len(*code))
		*code = append(*code, bytecode.Instruction{Op: bytecode.JMPIFFALSE})
		for i, sub := range pat.List {
			childLoad := append(append([]bytecode.Instruction{}, loadCode...), carChain(i)...)
			if err := c.compilePattern(sub, childLoad, code, failJumps); err != nil {
				return err
			}
		}
		return nil

	case ast.DottedList:
		k := len(pat.List)
		for i, sub := range pat.List {
			childLoad := append(append([]bytecode.Instruction{}, loadCode...), carChain(i)...)
			if err := c.compilePattern(sub, childLoad, code, failJumps); err != nil {
				return err
			}
		}
		restLoad := append(append([]bytecode.Instruction{}, loadCode...), cdrChain(k)...)
		return c.compilePattern(pat.Final, restLoad, code, failJumps)
	}
	return fmt.Errorf("unsupported pattern form %s", pat.Kind)
}
