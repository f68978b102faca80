// Package repl implements cmd/wish's read-eval-print loop (§0, §6 "wish"):
// line editing and history via github.com/chzyer/readline, a continuation
// prompt for forms left open across a line (tracked through
// parser.ParseError.Depth), and per-form compile+execute against one
// persistent VM so definitions and globals accumulate across the session —
// the interactive counterpart of the teacher's own ad hoc REPL loops seen
// in its lang/*_test.go harnesses, generalized here into a standalone tool.
package repl

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"

	"github.com/wisplang/wisp/internal/ast"
	"github.com/wisplang/wisp/internal/builtin"
	"github.com/wisplang/wisp/internal/compiler"
	"github.com/wisplang/wisp/internal/diag"
	"github.com/wisplang/wisp/internal/machine"
	"github.com/wisplang/wisp/internal/parser"
)

const (
	prompt     = "wish> "
	contPrompt = "  ... "
)

// REPL holds the one persistent VM and Compiler a session's forms compile
// and run against — reusing the same Compiler across forms is what makes a
// defun typed at one prompt visible to a call typed at the next, since its
// function table accumulates in Compiler.programFuncs across Compile calls.
type REPL struct {
	vm *machine.VM
	cc *compiler.Compiler
	rl *readline.Instance
}

// New creates a REPL reading from in and writing to out, with history kept
// at historyPath (empty disables history persistence).
func New(in io.ReadCloser, out io.Writer, historyPath string) (*REPL, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyPath,
		Stdin:           in,
		Stdout:          out,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	vm := machine.New(nil)
	builtin.Register(vm)
	vm.Stdout = out

	r := &REPL{vm: vm, cc: compiler.New(vm.Builtins), rl: rl}
	vm.Eval = r.evalHook
	return r, nil
}

// Banner returns the session's startup banner.
func Banner(builtinCount int) string {
	return fmt.Sprintf("wish — the wisp shell (%s builtins loaded)\ntype :quit or Ctrl-D to exit\n",
		humanize.Comma(int64(builtinCount)))
}

// Close releases the underlying readline instance.
func (r *REPL) Close() error { return r.rl.Close() }

// Run reads forms from the terminal until EOF or :quit, printing each
// completed top-level form's value (or compile/runtime error) to stdout.
func (r *REPL) Run() error {
	var buf strings.Builder
	r.rl.SetPrompt(prompt)

	for {
		line, err := r.rl.Readline()
		if err == readline.ErrInterrupt {
			buf.Reset()
			r.rl.SetPrompt(prompt)
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if buf.Len() == 0 && strings.TrimSpace(line) == ":quit" {
			return nil
		}

		buf.WriteString(line)
		buf.WriteByte('\n')

		forms, perr := parser.ParseString("<repl>", buf.String())
		if perr != nil {
			if pe, ok := perr.(*parser.ParseError); ok && pe.Depth > 0 {
				r.rl.SetPrompt(contPrompt)
				continue
			}
			fmt.Fprint(r.rl.Stderr(), diag.Format(buf.String(), sourceErrFromParse(perr)))
			buf.Reset()
			r.rl.SetPrompt(prompt)
			continue
		}

		src := buf.String()
		buf.Reset()
		r.rl.SetPrompt(prompt)
		r.evalForms(forms, src)
	}
}

// evalForms compiles and runs one batch of top-level forms read from one
// prompt cycle against the REPL's persistent VM, printing the resulting
// value or a boxed diagnostic for whichever error surfaces first.
func (r *REPL) evalForms(forms []*ast.Node, src string) {
	prog, err := r.cc.Compile(forms)
	if err != nil {
		fmt.Fprint(r.rl.Stderr(), diag.Format(src, sourceErrFromParse(err)))
		return
	}

	result, err := r.vm.RunProgram(prog)
	if err != nil {
		if re, ok := err.(*machine.RuntimeError); ok {
			se := diag.SourceError{
				Filename: "<repl>", Line: re.Line, Col: re.Col,
				Message: re.Message, Hint: re.Hint, Stack: re.Stack,
			}
			fmt.Fprint(r.rl.Stderr(), diag.Format(src, se))
			return
		}
		fmt.Fprintln(r.rl.Stderr(), err)
		return
	}
	if result != nil {
		fmt.Fprintln(r.rl.Stdout(), result)
	}
}

func (r *REPL) evalHook(vm *machine.VM, source, filename string) (machine.Value, error) {
	forms, err := parser.ParseString(filename, source)
	if err != nil {
		return nil, err
	}
	cc := compiler.New(vm.Builtins)
	prog, err := cc.Compile(forms)
	if err != nil {
		return nil, err
	}
	return vm.RunProgram(prog)
}

func sourceErrFromParse(err error) diag.SourceError {
	if pe, ok := err.(*parser.ParseError); ok {
		return diag.SourceError{Filename: "<repl>", Line: pe.Pos.Line, Col: pe.Pos.Col, Message: pe.Msg}
	}
	if ce, ok := err.(*compiler.CompileError); ok {
		return diag.SourceError{Filename: "<repl>", Line: ce.Pos.Line, Col: ce.Pos.Col, Message: ce.Msg, Hint: ce.Hint}
	}
	return diag.SourceError{Filename: "<repl>", Message: err.Error()}
}
