package diag_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisplang/wisp/internal/diag"
)

func TestFormatIncludesLocationAndCaret(t *testing.T) {
	src := "(defun add-one (n)\n  (+ n 1))\n(add-onee 5)\n"
	out := diag.Format(src, diag.SourceError{
		Filename: "prog.wisp",
		Line:     3,
		Col:      2,
		Message:  "Undefined identifier \"add-onee\"",
		Hint:     "add-one",
	})

	require.Contains(t, out, "prog.wisp:3:2")
	require.Contains(t, out, "Undefined identifier")
	require.Contains(t, out, "(add-onee 5)")
	require.Contains(t, out, "did you mean")
	require.Contains(t, out, "add-one")
}

func TestFormatIncludesCallStack(t *testing.T) {
	out := diag.Format("(f)\n", diag.SourceError{
		Filename: "prog.wisp",
		Line:     1,
		Col:      1,
		Message:  "division by zero",
		Stack:    []string{"divide", "f", "main"},
	})

	require.Contains(t, out, "call stack (innermost first):")
	require.Contains(t, out, "at divide")
	require.Contains(t, out, "at main")
}

func TestFormatWithoutLocationOmitsExcerpt(t *testing.T) {
	out := diag.Format("", diag.SourceError{Message: "something went wrong"})
	require.Contains(t, out, "something went wrong")
	require.NotContains(t, out, "-->")
}
