package machine

import (
	"github.com/dolthub/swiss"
	"golang.org/x/exp/slices"
)

// SwissMap is the backing store for HashMap: a thin wrapper over
// dolthub/swiss's open-addressing table, the same dependency the teacher's
// go.mod requires, here repurposed from Starlark-style hash-consing onto
// wisp's hashmap builtin surface (§6).
type SwissMap struct {
	m *swiss.Map[string, Value]
}

func newSwissMap() *SwissMap {
	return &SwissMap{m: swiss.NewMap[string, Value](uint32(8))}
}

func (s *SwissMap) Get(key string) (Value, bool) { return s.m.Get(key) }
func (s *SwissMap) Put(key string, v Value)       { s.m.Put(key, v) }
func (s *SwissMap) Delete(key string)              { s.m.Delete(key) }
func (s *SwissMap) Count() int                      { return s.m.Count() }

// Keys returns every key, sorted lexically so that iteration order is
// deterministic across runs (SPEC_FULL.md §3 supplement), resolving the
// hash-order dependence the original implementation left unspecified.
func (s *SwissMap) Keys() []string {
	keys := make([]string, 0, s.m.Count())
	s.m.Iter(func(k string, _ Value) bool {
		keys = append(keys, k)
		return false
	})
	slices.Sort(keys)
	return keys
}
