package builtin

import (
	"fmt"
	"os"

	"github.com/wisplang/wisp/internal/machine"
)

// registerIO installs the file-I/O family (§6): read-file/write-file/
// write-binary-file/file-exists? are thin os/io wrappers, while load/require
// delegate to the VM's injected LoadFileHook (compiler-supplied, §4.5/4.6
// "Scoping of eval") so this package never imports internal/compiler or
// internal/parser directly — the same hook-injection shape the teacher uses
// for its Thread.Load callback.
func registerIO(vm *machine.VM) {
	b := vm.Builtins

	b["read-file"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("read-file", args, 1); err != nil {
			return nil, err
		}
		path, err := asString("read-file", args[0])
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path.Go())
		if err != nil {
			return nil, fmt.Errorf("read-file: %w", err)
		}
		return machine.NewString(string(data)), nil
	}

	b["write-file"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("write-file", args, 2); err != nil {
			return nil, err
		}
		path, err := asString("write-file", args[0])
		if err != nil {
			return nil, err
		}
		content, err := asString("write-file", args[1])
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path.Go(), []byte(content.Go()), 0o644); err != nil {
			return nil, fmt.Errorf("write-file: %w", err)
		}
		return machine.Bool(true), nil
	}

	b["write-binary-file"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("write-binary-file", args, 2); err != nil {
			return nil, err
		}
		path, err := asString("write-binary-file", args[0])
		if err != nil {
			return nil, err
		}
		c, err := asCons("write-binary-file", args[1])
		if err != nil {
			return nil, err
		}
		var buf []byte
		for n := c; n != nil; n = n.Tail {
			i, err := asInteger("write-binary-file", n.Head)
			if err != nil {
				return nil, err
			}
			if i < 0 || i > 255 {
				return nil, fmt.Errorf("write-binary-file: byte value %d out of range", i)
			}
			buf = append(buf, byte(i))
		}
		if err := os.WriteFile(path.Go(), buf, 0o644); err != nil {
			return nil, fmt.Errorf("write-binary-file: %w", err)
		}
		return machine.Bool(true), nil
	}

	b["file-exists?"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("file-exists?", args, 1); err != nil {
			return nil, err
		}
		path, err := asString("file-exists?", args[0])
		if err != nil {
			return nil, err
		}
		_, err = os.Stat(path.Go())
		return machine.Bool(err == nil), nil
	}

	b["load"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("load", args, 1); err != nil {
			return nil, err
		}
		path, err := asString("load", args[0])
		if err != nil {
			return nil, err
		}
		if vm.LoadFile == nil {
			return nil, fmt.Errorf("load: not supported in this context")
		}
		return vm.LoadFile(vm, path.Go(), false)
	}

	b["require"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("require", args, 1); err != nil {
			return nil, err
		}
		path, err := asString("require", args[0])
		if err != nil {
			return nil, err
		}
		if vm.LoadFile == nil {
			return nil, fmt.Errorf("require: not supported in this context")
		}
		return vm.LoadFile(vm, path.Go(), true)
	}
}
