// Package wispcmd implements cmd/wisp, the interpreter driver (§0, §6
// "run"): compiles (or loads a precompiled image of) a wisp source file and
// executes it to completion, wiring the VM's Eval/LoadFile hooks back to
// this package's own parse+compile+run pipeline so that eval/load/require
// (internal/builtin/io.go, internal/builtin/misc.go) work outside the
// compiler's macro-expansion-only embedded VM.
package wispcmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mna/mainer"

	"github.com/wisplang/wisp/internal/binfmt"
	"github.com/wisplang/wisp/internal/builtin"
	"github.com/wisplang/wisp/internal/bytecode"
	"github.com/wisplang/wisp/internal/compiler"
	"github.com/wisplang/wisp/internal/diag"
	"github.com/wisplang/wisp/internal/machine"
	"github.com/wisplang/wisp/internal/parser"
)

const binName = "wisp"

var usage = fmt.Sprintf(`usage: %s [--print-result] <program.wisp|program.wispc> [-- <arg>...]
       %[1]s -h|--help
       %[1]s -v|--version

Runs a wisp program (source or precompiled bytecode image, §4.3) to
completion.

Valid flag options are:
       -h --help              Show this help and exit.
       -v --version           Print version and exit.
       --print-result         Print the value of the program's final
                              top-level expression to stdout.

Arguments following "--" are passed through to the program and are visible
via the get-args builtin.
`, binName)

// Cmd is wisp's flag-parsed command line.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help        bool `flag:"h,help"`
	Version     bool `flag:"v,version"`
	PrintResult bool `flag:"print-result"`

	args []string
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) == 0 {
		return fmt.Errorf("expected a program file")
	}
	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{EnvVars: false, EnvPrefix: binName + "_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, usage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, usage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.run(ctx, stdio); err != nil {
		return mainer.Failure
	}
	return mainer.Success
}

func (c *Cmd) run(_ context.Context, stdio mainer.Stdio) error {
	progPath := c.args[0]
	progArgs := c.args[1:]

	vm := machine.New(nil)
	builtin.Register(vm)
	vm.Args = progArgs
	vm.Stdout = stdio.Stdout
	vm.Eval = evalHook
	vm.LoadFile = loadFileHook(filepath.Dir(progPath))

	prog, src, err := loadProgram(progPath)
	if err != nil {
		printLoadErr(stdio, progPath, src, err)
		return err
	}

	result, err := vm.RunProgram(prog)
	if err != nil {
		printRuntimeErr(stdio, progPath, src, err)
		return err
	}
	if c.PrintResult && result != nil {
		fmt.Fprintln(stdio.Stdout, result)
	}
	return nil
}

// loadProgram compiles progPath from source, or decodes it as a bytecode
// image when its extension is .wispc — the run driver accepts either, as
// §6 "run" specifies. src is the original source text for error rendering,
// empty for a precompiled image (which carries no source positions).
func loadProgram(progPath string) (*bytecode.Program, string, error) {
	if strings.HasSuffix(progPath, ".wispc") {
		data, err := os.ReadFile(progPath)
		if err != nil {
			return nil, "", err
		}
		prog, err := binfmt.Decode(data)
		return prog, "", err
	}

	data, err := os.ReadFile(progPath)
	if err != nil {
		return nil, "", err
	}
	src := string(data)
	forms, err := parser.ParseString(progPath, src)
	if err != nil {
		return nil, src, err
	}
	cc := compiler.New(builtinsForCompile())
	prog, err := cc.Compile(forms)
	return prog, src, err
}

func builtinsForCompile() map[string]machine.BuiltinFunc {
	vm := machine.New(nil)
	builtin.Register(vm)
	return vm.Builtins
}

// evalHook implements machine.EvalHook: parse+compile source and run it in
// a fresh, sibling VM that shares no mutable state with the caller beyond
// the value it returns (§4.6 "eval runs in its own top-level scope").
func evalHook(vm *machine.VM, source, filename string) (machine.Value, error) {
	forms, err := parser.ParseString(filename, source)
	if err != nil {
		return nil, err
	}
	cc := compiler.New(builtinsForCompile())
	prog, err := cc.Compile(forms)
	if err != nil {
		return nil, err
	}
	sub := machine.New(nil)
	builtin.Register(sub)
	sub.Args = vm.Args
	sub.Stdout = vm.Stdout
	sub.Eval = evalHook
	return sub.RunProgram(prog)
}

// loadFileHook implements machine.LoadFileHook for load/require, resolving
// relative paths against baseDir (the directory of the file that started
// the program; a load from another directory does not change it).
func loadFileHook(baseDir string) machine.LoadFileHook {
	required := map[string]bool{}
	return func(vm *machine.VM, path string, dedupe bool) (machine.Value, error) {
		full := path
		if !filepath.IsAbs(full) {
			full = filepath.Join(baseDir, full)
		}
		if abs, err := filepath.Abs(full); err == nil {
			full = abs
		}
		if dedupe {
			if required[full] {
				return nil, nil
			}
			required[full] = true
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, err
		}
		return evalHook(vm, string(data), full)
	}
}

// printLoadErr reports a parse or compile failure from loadProgram, boxing
// it through diag.Format exactly as wispc's printSourceErr does so source
// errors read identically whether caught by wispc ahead of time or by wisp
// at run time.
func printLoadErr(stdio mainer.Stdio, filename, src string, err error) {
	se := diag.SourceError{Filename: filename, Message: err.Error()}
	if pe, ok := err.(*parser.ParseError); ok {
		se.Line, se.Col = pe.Pos.Line, pe.Pos.Col
	}
	if ce, ok := err.(*compiler.CompileError); ok {
		se.Line, se.Col = ce.Pos.Line, ce.Pos.Col
		se.Hint = ce.Hint
	}
	if src == "" {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", binName, err)
		return
	}
	fmt.Fprint(stdio.Stderr, diag.Format(src, se))
}

func printRuntimeErr(stdio mainer.Stdio, filename, src string, err error) {
	re, ok := err.(*machine.RuntimeError)
	if !ok {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", binName, err)
		return
	}
	se := diag.SourceError{
		Filename: filename,
		Line:     re.Line,
		Col:      re.Col,
		Message:  re.Message,
		Hint:     re.Hint,
		Stack:    re.Stack,
	}
	fmt.Fprint(stdio.Stderr, diag.Format(src, se))
}
