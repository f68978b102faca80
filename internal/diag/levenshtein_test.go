package diag_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisplang/wisp/internal/diag"
)

func TestLevenshtein(t *testing.T) {
	require.Equal(t, 0, diag.Levenshtein("same", "same"))
	require.Equal(t, 1, diag.Levenshtein("cat", "cats"))
	require.Equal(t, 3, diag.Levenshtein("kitten", "sitting"))
}

func TestSuggestFindsClosestWithinCutoff(t *testing.T) {
	got := diag.Suggest("add-onee", []string{"add-one", "subtract", "multiply"})
	require.Equal(t, "add-one", got)
}

func TestSuggestRejectsFarCandidates(t *testing.T) {
	got := diag.Suggest("zzzzzzzzzz", []string{"add-one", "subtract"})
	require.Empty(t, got)
}

func TestSuggestSkipsExactMatch(t *testing.T) {
	got := diag.Suggest("foo", []string{"foo", "fop"})
	require.Equal(t, "fop", got)
}
