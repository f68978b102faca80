package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// SourceError is the common shape Format renders: a located message (a
// compile error's token.Position or a runtime error's Line/Col, passed as
// plain ints rather than those packages' own types so this package never
// imports compiler or machine — see Levenshtein's doc comment for the same
// reasoning) plus an optional "did you mean" hint and an optional call
// stack, innermost frame first (populated only for runtime errors).
type SourceError struct {
	Filename string
	Line     int
	Col      int
	Message  string
	Hint     string
	Stack    []string
}

var (
	errLabel    = color.New(color.FgRed, color.Bold)
	lineNumCol  = color.New(color.FgHiBlack)
	caretCol    = color.New(color.FgYellow, color.Bold)
	hintCol     = color.New(color.FgCyan)
	stackFnCol  = color.New(color.FgMagenta)
	contextDim  = color.New(color.FgHiBlack)
)

// Format renders e as a boxed, colorized diagnostic (§4.4, §7): the source
// line the failure occurred on framed by one line of context on each side,
// a caret under the failing column, and — for runtime errors — the call
// stack innermost-first, following the teacher's diagnostics.PrintError
// layout (a location header, a source excerpt, then a stack trace) adapted
// from its compiler-error rendering onto wisp's combined compile+runtime
// error shape.
func Format(src string, e SourceError) string {
	var sb strings.Builder

	loc := e.Filename
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.Filename, e.Line, e.Col)
	}
	sb.WriteString(errLabel.Sprint("error: "))
	sb.WriteString(e.Message)
	sb.WriteByte('\n')
	if loc != "" {
		sb.WriteString(contextDim.Sprintf("  --> %s\n", loc))
	}

	if e.Line > 0 {
		lines := strings.Split(src, "\n")
		writeLine := func(n int) {
			if n < 1 || n > len(lines) {
				return
			}
			sb.WriteString(lineNumCol.Sprintf("%4d | ", n))
			sb.WriteString(lines[n-1])
			sb.WriteByte('\n')
		}
		writeLine(e.Line - 1)
		writeLine(e.Line)
		if e.Col > 0 {
			sb.WriteString("     | ")
			sb.WriteString(strings.Repeat(" ", e.Col-1))
			sb.WriteString(caretCol.Sprint("^"))
			sb.WriteByte('\n')
		}
		writeLine(e.Line + 1)
	}

	if e.Hint != "" {
		sb.WriteString(hintCol.Sprintf("  hint: did you mean %q?\n", e.Hint))
	}

	if len(e.Stack) > 0 {
		sb.WriteString("  call stack (innermost first):\n")
		for _, fn := range e.Stack {
			sb.WriteString("    at ")
			sb.WriteString(stackFnCol.Sprint(fn))
			sb.WriteByte('\n')
		}
	}

	return sb.String()
}
