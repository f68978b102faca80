package machine_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisplang/wisp/internal/machine"
)

func TestBinaryIntegerArithmetic(t *testing.T) {
	cases := []struct {
		op       string
		x, y     machine.Integer
		want     machine.Value
	}{
		{"add", 2, 3, machine.Integer(5)},
		{"sub", 5, 3, machine.Integer(2)},
		{"mul", 4, 3, machine.Integer(12)},
		{"div", 7, 2, machine.Integer(3)},
		{"mod", 7, 2, machine.Integer(1)},
	}
	for _, c := range cases {
		t.Run(c.op, func(t *testing.T) {
			got, err := machine.Binary(c.op, c.x, c.y)
			require.NoError(t, err)
			require.Equal(t, c.want, got)
		})
	}
}

func TestBinaryPromotesIntToFloat(t *testing.T) {
	got, err := machine.Binary("add", machine.Integer(1), machine.Float(0.5))
	require.NoError(t, err)
	require.Equal(t, machine.Float(1.5), got)
}

func TestBinaryDivisionByZero(t *testing.T) {
	_, err := machine.Binary("div", machine.Integer(1), machine.Integer(0))
	require.Error(t, err)

	_, err = machine.Binary("mod", machine.Integer(1), machine.Integer(0))
	require.Error(t, err)
}

func TestNeg(t *testing.T) {
	got, err := machine.Neg(machine.Integer(5))
	require.NoError(t, err)
	require.Equal(t, machine.Integer(-5), got)

	_, err = machine.Neg(machine.Bool(true))
	require.Error(t, err)
}

func TestCompareEqUsesIEEESemantics(t *testing.T) {
	nan := machine.Float(math.NaN())
	eq, err := machine.Compare("eq", nan, nan)
	require.NoError(t, err)
	require.False(t, eq, "NaN must not equal itself under builtin ==")
}

func TestCompareOrdering(t *testing.T) {
	lt, err := machine.Compare("lt", machine.Integer(1), machine.Integer(2))
	require.NoError(t, err)
	require.True(t, lt)

	gte, err := machine.Compare("gte", machine.Integer(2), machine.Integer(2))
	require.NoError(t, err)
	require.True(t, gte)
}

func TestValueEqualTreatsNaNAsEqualToItself(t *testing.T) {
	nan := machine.Float(math.NaN())
	require.True(t, machine.ValueEqual(nan, nan), "ValueEqual is structural, not IEEE")
}

func TestConsEquality(t *testing.T) {
	a := machine.NewCons(machine.Integer(1), machine.NewCons(machine.Integer(2), nil))
	b := machine.NewCons(machine.Integer(1), machine.NewCons(machine.Integer(2), nil))
	require.True(t, machine.ValueEqual(a, b))

	c := machine.NewCons(machine.Integer(1), machine.NewCons(machine.Integer(3), nil))
	require.False(t, machine.ValueEqual(a, c))

	machine.ReleaseCons(a)
	machine.ReleaseCons(b)
	machine.ReleaseCons(c)
}
