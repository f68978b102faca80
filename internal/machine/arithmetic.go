package machine

import "fmt"

// Binary implements the arithmetic opcodes (ADD, SUB, MUL, DIV, MOD, NEG is
// unary and handled separately) with Integer x Float auto-promotion to
// Float (§4.2).
func Binary(op string, x, y Value) (Value, error) {
	xi, xIsInt := x.(Integer)
	yi, yIsInt := y.(Integer)
	if xIsInt && yIsInt {
		switch op {
		case "add":
			return xi + yi, nil
		case "sub":
			return xi - yi, nil
		case "mul":
			return xi * yi, nil
		case "div":
			if yi == 0 {
				return nil, fmt.Errorf("division by zero (try checking the divisor before dividing)")
			}
			return xi / yi, nil
		case "mod":
			if yi == 0 {
				return nil, fmt.Errorf("modulo by zero (try checking the divisor before taking a remainder)")
			}
			return xi % yi, nil
		}
	}

	xf, xok := toFloat(x)
	yf, yok := toFloat(y)
	if !xok || !yok {
		return nil, fmt.Errorf("arithmetic operation %q requires numbers, got %s and %s", op, x.Type(), y.Type())
	}
	switch op {
	case "add":
		return Float(xf + yf), nil
	case "sub":
		return Float(xf - yf), nil
	case "mul":
		return Float(xf * yf), nil
	case "div":
		if yf == 0 {
			return nil, fmt.Errorf("division by zero (try checking the divisor before dividing)")
		}
		return Float(xf / yf), nil
	case "mod":
		if yf == 0 {
			return nil, fmt.Errorf("modulo by zero (try checking the divisor before taking a remainder)")
		}
		return Float(int64(xf) % int64(yf)), nil
	}
	return nil, fmt.Errorf("unknown arithmetic operator %q", op)
}

// Neg implements the unary NEG opcode.
func Neg(x Value) (Value, error) {
	switch v := x.(type) {
	case Integer:
		return -v, nil
	case Float:
		return -v, nil
	default:
		return nil, fmt.Errorf("cannot negate a %s", x.Type())
	}
}

func toFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case Integer:
		return float64(x), true
	case Float:
		return float64(x), true
	default:
		return 0, false
	}
}

// Compare implements the comparison opcodes (LT, LEQ, GT, GTE, EQ, NEQ).
// Eq/Neq on Integer/Float follow IEEE semantics (NaN != NaN), per spec §3's
// distinction between builtin `==` (IEEE) and the value-level structural
// equality used for macro-result comparison (ValueEqual, below).
func Compare(op string, x, y Value) (bool, error) {
	if op == "eq" || op == "neq" {
		eq := rawEqual(x, y)
		if op == "neq" {
			return !eq, nil
		}
		return eq, nil
	}

	xf, xok := toFloat(x)
	yf, yok := toFloat(y)
	if !xok || !yok {
		return false, fmt.Errorf("comparison %q requires numbers, got %s and %s", op, x.Type(), y.Type())
	}
	switch op {
	case "lt":
		return xf < yf, nil
	case "leq":
		return xf <= yf, nil
	case "gt":
		return xf > yf, nil
	case "gte":
		return xf >= yf, nil
	}
	return false, fmt.Errorf("unknown comparison operator %q", op)
}

// rawEqual implements builtin `==` IEEE semantics: NaN never equals
// anything, including itself.
func rawEqual(x, y Value) bool {
	switch a := x.(type) {
	case Integer:
		switch b := y.(type) {
		case Integer:
			return a == b
		case Float:
			return float64(a) == float64(b)
		}
		return false
	case Float:
		switch b := y.(type) {
		case Integer:
			return float64(a) == float64(b)
		case Float:
			return float64(a) == float64(b)
		}
		return false
	case Bool:
		b, ok := y.(Bool)
		return ok && a == b
	case *String:
		b, ok := y.(*String)
		return ok && a.Go() == b.Go()
	case *Symbol:
		b, ok := y.(*Symbol)
		return ok && a == b // interned: pointer compare
	case *Cons:
		b, ok := y.(*Cons)
		if !ok {
			return false
		}
		return consEqual(a, b)
	default:
		return x == y
	}
}

func consEqual(a, b *Cons) bool {
	for a != nil && b != nil {
		if !rawEqual(a.Head, b.Head) {
			return false
		}
		a, b = a.Tail, b.Tail
	}
	return a == nil && b == nil
}

// ValueEqual is the structural, variant-tagged equality used for macro
// round-trip comparisons and test assertions (§3): unlike rawEqual/builtin
// `==`, two NaN floats of the same tag compare equal, since this equality
// answers "are these the same piece of code-as-data", not "are these the
// same number".
func ValueEqual(x, y Value) bool {
	if xf, ok := x.(Float); ok {
		if yf, ok := y.(Float); ok {
			xnan := xf != xf
			ynan := yf != yf
			if xnan || ynan {
				return xnan == ynan
			}
		}
	}
	return rawEqual(x, y)
}
