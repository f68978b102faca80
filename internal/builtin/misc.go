package builtin

import (
	"fmt"

	"github.com/wisplang/wisp/internal/machine"
)

// registerMisc installs the handful of builtins that don't fit a larger
// family: get-args exposes the driver's trailing program arguments (wired
// by cmd/wisp's run driver into vm.Args before execution begins), and eval
// re-enters parse+compile+execute through the VM's injected EvalHook, the
// same hook-injection shape load/require use in internal/builtin/io.go.
func registerMisc(vm *machine.VM) {
	vm.Builtins["get-args"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("get-args", args, 0); err != nil {
			return nil, err
		}
		elems := make([]machine.Value, len(vm.Args))
		for i, a := range vm.Args {
			elems[i] = machine.NewString(a)
		}
		return sliceToCons(elems), nil
	}

	vm.Builtins["eval"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("eval", args, 1); err != nil {
			return nil, err
		}
		src, err := asString("eval", args[0])
		if err != nil {
			return nil, err
		}
		if vm.Eval == nil {
			return nil, fmt.Errorf("eval: not supported in this context")
		}
		return vm.Eval(vm, src.Go(), "<eval>")
	}

	// %pattern-fail% is emitted by the compiler's defun-match lowering
	// (§4.5 "Pattern matching") as the trailing instruction reached when no
	// clause's pattern matched the call arguments; it is not part of the
	// builtin surface a wisp program calls directly.
	vm.Builtins["%pattern-fail%"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		name := "<function>"
		if len(args) == 1 {
			if s, ok := args[0].(*machine.String); ok {
				name = s.Go()
			}
		}
		return nil, fmt.Errorf("no clause of %q matches the given arguments", name)
	}
}
