package verdict

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func decisionAt(i int) Decision {
	return Decisions[i%len(Decisions)]
}

func idsFrom(ns []int) []string {
	ids := make([]string, len(ns))
	for i, n := range ns {
		ids[i] = "RL-00" + string(rune('0'+n%10))
	}
	return ids
}

// TestMergeProperties checks the merge policy invariants over random verdict pairs.
func TestMergeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("decision is the more conservative input", prop.ForAll(
		func(da, db int, ca, cb float64) bool {
			a := New(decisionAt(da), ca, nil, nil, nil)
			b := New(decisionAt(db), cb, nil, nil, nil)
			m := Merge(a, b)
			want := a.Decision
			if b.Decision.Rank() > a.Decision.Rank() {
				want = b.Decision
			}
			return m.Decision == want
		},
		gen.IntRange(0, 2),
		gen.IntRange(0, 2),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.Property("confidence is the maximum and stays rounded in range", prop.ForAll(
		func(ca, cb float64) bool {
			a := New(Go, ca, nil, nil, nil)
			b := New(Go, cb, nil, nil, nil)
			m := Merge(a, b)
			if m.ConfLevel != a.ConfLevel && m.ConfLevel != b.ConfLevel {
				return false
			}
			return m.ConfLevel >= a.ConfLevel && m.ConfLevel >= b.ConfLevel && m.Check(nil) == nil
		},
		gen.Float64Range(-1, 2),
		gen.Float64Range(-1, 2),
	))

	properties.Property("redlines are the ordered de-duplicated union", prop.ForAll(
		func(na, nb []int) bool {
			a := New(Caution, 0.5, nil, idsFrom(na), nil)
			b := New(Caution, 0.5, nil, idsFrom(nb), nil)
			m := Merge(a, b)

			seen := map[string]bool{}
			var want []string
			for _, id := range append(append([]string{}, a.Redlines...), b.Redlines...) {
				if !seen[id] {
					seen[id] = true
					want = append(want, id)
				}
			}
			if len(want) != len(m.Redlines) {
				return false
			}
			for i := range want {
				if want[i] != m.Redlines[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 9)),
		gen.SliceOf(gen.IntRange(0, 9)),
	))

	properties.TestingRun(t)
}
