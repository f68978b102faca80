package binfmt_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisplang/wisp/internal/binfmt"
	"github.com/wisplang/wisp/internal/bytecode"
)

// TestRoundTripSeedScenario is §8 seed scenario 6: a program containing
// Push(Integer(INT64_MIN)), Push(Boolean(true)), JmpIfFalse(10),
// Call("f", 2) survives an encode/decode cycle unchanged.
func TestRoundTripSeedScenario(t *testing.T) {
	prog := &bytecode.Program{
		Main: []bytecode.Instruction{
			{Op: bytecode.PUSH, Lit: bytecode.Literal{Kind: bytecode.LitInt, Int: math.MinInt64}},
			{Op: bytecode.PUSH, Lit: bytecode.Literal{Kind: bytecode.LitBool, Bool: true}},
			{Op: bytecode.JMPIFFALSE, Addr: 10},
			{Op: bytecode.CALL, Name: "f", Argc: 2},
			{Op: bytecode.HALT},
		},
	}

	data := binfmt.Encode(prog)
	got, err := binfmt.Decode(data)
	require.NoError(t, err)
	require.Equal(t, prog.Main, got.Main)
}

// TestRoundTripIncludesFunctionSignature ensures the Params/HasRest fields
// added for the reflection builtins survive the binary format too, not
// just the instruction stream.
func TestRoundTripIncludesFunctionSignature(t *testing.T) {
	prog := &bytecode.Program{
		Functions: []bytecode.Function{
			{
				Name:    "sum",
				Params:  nil,
				HasRest: true,
				Code: []bytecode.Instruction{
					{Op: bytecode.PACKRESTARGS, N: 0},
					{Op: bytecode.RET},
				},
			},
			{
				Name:    "add",
				Params:  []string{"x", "y"},
				HasRest: false,
				Code: []bytecode.Instruction{
					{Op: bytecode.LOADARG, N: 0},
					{Op: bytecode.LOADARG, N: 1},
					{Op: bytecode.ADD},
					{Op: bytecode.RET},
				},
			},
		},
		Main: []bytecode.Instruction{{Op: bytecode.HALT}},
	}

	got, err := binfmt.Decode(binfmt.Encode(prog))
	require.NoError(t, err)
	require.Equal(t, prog.Functions, got.Functions)
}

// TestRoundTripClosureInstruction covers the recursively-embedded
// MAKECLOSURE/MAKEVARIADICCLOSURE encoding (§4.3).
func TestRoundTripClosureInstruction(t *testing.T) {
	prog := &bytecode.Program{
		Main: []bytecode.Instruction{
			{
				Op:            bytecode.MAKEVARIADICCLOSURE,
				Params:        []string{"a", "b"},
				Rest:          "rest",
				CapturedNames: []string{"outer"},
				NCap:          1,
				Body: []bytecode.Instruction{
					{Op: bytecode.LOADARG, N: 0},
					{Op: bytecode.RET},
				},
			},
			{Op: bytecode.HALT},
		},
	}

	got, err := binfmt.Decode(binfmt.Encode(prog))
	require.NoError(t, err)
	require.Equal(t, prog.Main, got.Main)
}

// TestDecodeRejectsBadMagic and wrong version are the two guard conditions
// §4.3 calls out as hard failures.
func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := binfmt.Decode([]byte("NOPE1234"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad magic")
}

func TestDecodeRejectsWrongVersion(t *testing.T) {
	data := binfmt.Encode(&bytecode.Program{Main: []bytecode.Instruction{{Op: bytecode.HALT}}})
	data[4] = 99 // version byte, right after the 4-byte magic
	_, err := binfmt.Decode(data)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported bytecode format version")
}
