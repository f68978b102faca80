package machine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisplang/wisp/internal/machine"
)

// TestStructuralSharing is §8 invariant 5: cloning a shared tail into a new
// cons cell bumps the tail's count by one, and dropping the new cell
// returns it to its original count.
func TestStructuralSharing(t *testing.T) {
	tail := machine.NewCons(machine.Integer(3), nil)
	require.EqualValues(t, 1, tail.RefCount())

	shared := machine.NewCons(machine.Integer(2), tail)
	require.EqualValues(t, 2, tail.RefCount())

	machine.ReleaseCons(shared)
	require.EqualValues(t, 1, tail.RefCount())

	machine.ReleaseCons(tail)
}

// TestReleaseConsIsIterative is §8 invariant 4 / seed scenario 7: releasing
// a long uniquely-owned list does not recurse per cell (it would overflow
// the goroutine stack well before a million elements if it did).
func TestReleaseConsIsIterative(t *testing.T) {
	const n = 1_000_000
	var list *machine.Cons
	for i := 0; i < n; i++ {
		list = machine.NewCons(machine.Integer(i), list)
	}
	require.Equal(t, n, list.Len())
	machine.ReleaseCons(list) // must not exhaust the native stack
}

// TestReleaseConsStopsAtSharedOwner confirms the spine walk halts the
// instant it reaches a cell that still has another owner, leaving the rest
// of the chain intact rather than releasing past it.
func TestReleaseConsStopsAtSharedOwner(t *testing.T) {
	tail := machine.NewCons(machine.Integer(1), nil)
	a := machine.NewCons(machine.Integer(2), tail)
	b := machine.NewCons(machine.Integer(3), tail) // second owner of tail

	machine.ReleaseCons(a)
	require.EqualValues(t, 2, tail.RefCount(), "tail must survive: b still owns it")
	require.Equal(t, machine.Integer(1), tail.Head)

	machine.ReleaseCons(b)
}

func TestSymbolInterning(t *testing.T) {
	a := machine.Intern("foo")
	b := machine.Intern("foo")
	require.Same(t, a, b)

	c := machine.Intern("bar")
	require.NotSame(t, a, c)
}

func TestTruth(t *testing.T) {
	require.True(t, machine.Truth(machine.Integer(0)))
	require.True(t, machine.Truth(machine.Bool(true)))
	require.False(t, machine.Truth(machine.Bool(false)))
	require.True(t, machine.Truth((*machine.Cons)(nil)))
}
