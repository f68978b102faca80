package disasm_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisplang/wisp/internal/bytecode"
	"github.com/wisplang/wisp/internal/disasm"
)

func sampleProgram() *bytecode.Program {
	return &bytecode.Program{
		Functions: []bytecode.Function{
			{
				Name:   "add",
				Params: []string{"x", "y"},
				Code: []bytecode.Instruction{
					{Op: bytecode.LOADARG, N: 0},
					{Op: bytecode.LOADARG, N: 1},
					{Op: bytecode.ADD},
					{Op: bytecode.RET},
				},
			},
		},
		Main: []bytecode.Instruction{
			{Op: bytecode.PUSH, Lit: bytecode.Literal{Kind: bytecode.LitInt, Int: 1}},
			{Op: bytecode.PUSH, Lit: bytecode.Literal{Kind: bytecode.LitInt, Int: 2}},
			{Op: bytecode.CALL, Name: "add", Argc: 2},
			{Op: bytecode.HALT},
		},
	}
}

func TestListingContainsEveryFunctionAndMain(t *testing.T) {
	out := disasm.Listing(sampleProgram())
	require.Contains(t, out, "function add:")
	require.Contains(t, out, "main:")
	require.Contains(t, out, "loadarg")
	require.Contains(t, out, "add/2")
}

func TestComputeStatsCountsInstructionsAndNestedClosureBodies(t *testing.T) {
	prog := sampleProgram()
	prog.Main = append(prog.Main[:len(prog.Main)-1], bytecode.Instruction{
		Op: bytecode.MAKECLOSURE,
		Body: []bytecode.Instruction{
			{Op: bytecode.LOADARG, N: 0},
			{Op: bytecode.RET},
		},
	}, bytecode.Instruction{Op: bytecode.HALT})

	st := disasm.ComputeStats(prog)
	require.Equal(t, 1, st.FunctionCount)
	require.Equal(t, 4, st.PerFunction["add"])
	// main: push, push, call, makeclosure, halt (5 direct) + 2 embedded in
	// the closure body = 7.
	require.Equal(t, 7, st.MainInstructions)
	require.Equal(t, 11, st.TotalInstructions)
}

func TestWriteStatsRendersATable(t *testing.T) {
	var buf bytes.Buffer
	disasm.WriteStats(&buf, disasm.ComputeStats(sampleProgram()))
	require.Contains(t, buf.String(), "add")
	require.Contains(t, buf.String(), "main")
}
