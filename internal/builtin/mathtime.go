package builtin

import (
	"math"
	"math/rand"
	"time"

	"github.com/wisplang/wisp/internal/machine"
)

// toFloat coerces an Integer or Float argument to a Go float64 for the
// transcendental math builtins, which all operate on Float regardless of
// the argument's concrete numeric type (§6 "math").
func toFloat(name string, v machine.Value) (float64, error) {
	switch n := v.(type) {
	case machine.Integer:
		return float64(n), nil
	case machine.Float:
		return float64(n), nil
	default:
		return 0, typeError(name, "number", v)
	}
}

// registerMath installs the math family (§6), grounded on the teacher's
// math builtin table wrapping Go's math package one function at a time.
func registerMath(vm *machine.VM) {
	unary := func(name string, f func(float64) float64) {
		vm.Builtins[name] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
			if err := needArgs(name, args, 1); err != nil {
				return nil, err
			}
			x, err := toFloat(name, args[0])
			if err != nil {
				return nil, err
			}
			return machine.Float(f(x)), nil
		}
	}
	unary("sqrt", math.Sqrt)
	unary("sin", math.Sin)
	unary("cos", math.Cos)
	unary("tan", math.Tan)
	unary("atan", math.Atan)
	unary("floor", math.Floor)
	unary("ceil", math.Ceil)
	unary("log", math.Log)
	unary("exp", math.Exp)

	vm.Builtins["abs"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("abs", args, 1); err != nil {
			return nil, err
		}
		switch n := args[0].(type) {
		case machine.Integer:
			if n < 0 {
				return -n, nil
			}
			return n, nil
		case machine.Float:
			return machine.Float(math.Abs(float64(n))), nil
		default:
			return nil, typeError("abs", "number", args[0])
		}
	}

	vm.Builtins["atan2"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("atan2", args, 2); err != nil {
			return nil, err
		}
		y, err := toFloat("atan2", args[0])
		if err != nil {
			return nil, err
		}
		x, err := toFloat("atan2", args[1])
		if err != nil {
			return nil, err
		}
		return machine.Float(math.Atan2(y, x)), nil
	}

	vm.Builtins["pow"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("pow", args, 2); err != nil {
			return nil, err
		}
		x, err := toFloat("pow", args[0])
		if err != nil {
			return nil, err
		}
		y, err := toFloat("pow", args[1])
		if err != nil {
			return nil, err
		}
		return machine.Float(math.Pow(x, y)), nil
	}

	vm.Builtins["random"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("random", args, 0); err != nil {
			return nil, err
		}
		return machine.Float(vm.Rand.Float64()), nil
	}

	vm.Builtins["random-int"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("random-int", args, 1); err != nil {
			return nil, err
		}
		n, err := asInteger("random-int", args[0])
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, typeError("random-int", "a positive integer", args[0])
		}
		return machine.Integer(vm.Rand.Int63n(int64(n))), nil
	}

	vm.Builtins["seed-random"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("seed-random", args, 1); err != nil {
			return nil, err
		}
		seed, err := asInteger("seed-random", args[0])
		if err != nil {
			return nil, err
		}
		vm.Rand = rand.New(rand.NewSource(int64(seed)))
		return machine.Bool(true), nil
	}
}

// registerTime installs the time family (§6): current-time returns whole
// seconds since the Unix epoch, current-time-millis the millisecond
// equivalent used by benchmarking scripts, and time-format renders a
// timestamp with a Go reference-time layout string (chosen over a strftime
// dialect since the host language's own time.Format is the teacher's
// convention).
func registerTime(vm *machine.VM) {
	vm.Builtins["current-time"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("current-time", args, 0); err != nil {
			return nil, err
		}
		return machine.Integer(time.Now().Unix()), nil
	}

	vm.Builtins["current-time-millis"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("current-time-millis", args, 0); err != nil {
			return nil, err
		}
		return machine.Integer(time.Now().UnixMilli()), nil
	}

	vm.Builtins["time-format"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("time-format", args, 2); err != nil {
			return nil, err
		}
		sec, err := asInteger("time-format", args[0])
		if err != nil {
			return nil, err
		}
		layout, err := asString("time-format", args[1])
		if err != nil {
			return nil, err
		}
		return machine.NewString(time.Unix(int64(sec), 0).UTC().Format(layout.Go())), nil
	}
}
