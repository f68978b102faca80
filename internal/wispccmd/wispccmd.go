// Package wispccmd implements cmd/wispc, the wisp compiler driver (§0, §6
// "compile"): parses and compiles one source file into a bytecode.Program
// and writes its binary encoding (§4.3) to disk. Its Cmd/Main/flag-tag
// shape is carried over verbatim from the teacher's internal/maincmd.Cmd,
// trimmed to the single command this binary performs (no subcommand
// dispatch, unlike nenuphar's multi-command Cmd).
package wispccmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mna/mainer"

	"github.com/wisplang/wisp/internal/binfmt"
	"github.com/wisplang/wisp/internal/builtin"
	"github.com/wisplang/wisp/internal/compiler"
	"github.com/wisplang/wisp/internal/diag"
	"github.com/wisplang/wisp/internal/machine"
	"github.com/wisplang/wisp/internal/parser"
)

const binName = "wispc"

var usage = fmt.Sprintf(`usage: %s [-o <file>] <source.wisp>
       %[1]s -h|--help
       %[1]s -v|--version

Compiles a wisp source file to a bytecode image (§4.3).

Valid flag options are:
       -h --help              Show this help and exit.
       -v --version           Print version and exit.
       -o --output <file>     Write the bytecode image to <file> instead of
                              replacing the source's extension with .wispc.
`, binName)

// Cmd is wispc's flag-parsed command line, installed by mainer.Parser.Parse
// via struct tags exactly as the teacher's maincmd.Cmd is.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool   `flag:"h,help"`
	Version bool   `flag:"v,version"`
	Output  string `flag:"o,output"`

	args []string
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) != 1 {
		return fmt.Errorf("expected exactly one source file, got %d", len(c.args))
	}
	return nil
}

// Main parses command-line arguments and runs the compile step, following
// the teacher's Cmd.Main structure (parse flags, handle -h/-v, dispatch,
// translate the dispatched error into an exit code).
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
	if err := c.compile(ctx, stdio); err != nil {
		return mainer.Failure
	}
	return mainer.Success
}

func (c *Cmd) compile(_ context.Context, stdio mainer.Stdio) error {
	srcPath := c.args[0]
	src, err := os.ReadFile(srcPath)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", binName, err)
		return err
	}

	forms, err := parser.ParseString(srcPath, string(src))
	if err != nil {
		printSourceErr(stdio, srcPath, string(src), err)
		return err
	}

	cc := compiler.New(builtinsForCompile())
	prog, err := cc.Compile(forms)
	if err != nil {
		printSourceErr(stdio, srcPath, string(src), err)
		return err
	}

	out := c.Output
	if out == "" {
		ext := filepath.Ext(srcPath)
		out = strings.TrimSuffix(srcPath, ext) + ".wispc"
	}
	if err := os.WriteFile(out, binfmt.Encode(prog), 0o644); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", binName, err)
		return err
	}
	return nil
}

// builtinsForCompile gives the compiler's embedded macro-expansion VM the
// full builtin table, since a defmacro body may call ordinary builtins
// (string manipulation, list operations) while building its expansion.
func builtinsForCompile() map[string]machine.BuiltinFunc {
	vm := machine.New(nil)
	builtin.Register(vm)
	return vm.Builtins
}

func printSourceErr(stdio mainer.Stdio, filename, src string, err error) {
	se := diag.SourceError{Filename: filename, Message: err.Error()}
	if pe, ok := err.(*parser.ParseError); ok {
		se.Line, se.Col = pe.Pos.Line, pe.Pos.Col
	}
	if ce, ok := err.(*compiler.CompileError); ok {
		se.Line, se.Col = ce.Pos.Line, ce.Pos.Col
		se.Hint = ce.Hint
	}
	fmt.Fprint(stdio.Stderr, diag.Format(src, se))
}
