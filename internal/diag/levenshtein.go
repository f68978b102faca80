// Package diag implements wisp's diagnostic formatting: boxed, colorized
// compile-time and runtime error reports (§4.4, §7) and the "did you mean"
// identifier-suggestion search (SPEC_FULL.md §4.4 supplement). No library in
// the retrieval pack offers string-edit-distance, so Levenshtein is
// hand-written here; see DESIGN.md.
package diag

// Levenshtein returns the edit distance between a and b.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n, m := len(ra), len(rb)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}

	prev := make([]int, m+1)
	cur := make([]int, m+1)
	for j := 0; j <= m; j++ {
		prev[j] = j
	}

	for i := 1; i <= n; i++ {
		cur[0] = i
		for j := 1; j <= m; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			cur[j] = min3(del, ins, sub)
		}
		prev, cur = cur, prev
	}
	return prev[m]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// maxSuggestDistance is the cutoff beyond which a candidate is considered
// unrelated to the misspelled identifier rather than a likely typo.
const maxSuggestDistance = 3

// Suggest returns the closest name in candidates to target, within
// maxSuggestDistance edits, or "" if none qualifies. Ties are broken by the
// order candidates were supplied, so callers that want a deterministic
// result should pass candidates in a stable (e.g. sorted, or
// locals-then-captured-then-globals-then-builtins) search order.
func Suggest(target string, candidates []string) string {
	best := ""
	bestDist := maxSuggestDistance + 1
	for _, c := range candidates {
		if c == target {
			continue
		}
		d := Levenshtein(target, c)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}
