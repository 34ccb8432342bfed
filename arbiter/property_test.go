package arbiter

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/c360studio/crucible/idea"
	"github.com/c360studio/crucible/rules"
	"github.com/c360studio/crucible/verdict"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var decisionWords = []string{"deny", "caution", "go", "DENY", "Go", "maybe", ""}

func replyFor(decision int, conf float64, ids []int) string {
	redlines := make([]string, len(ids))
	for i, n := range ids {
		redlines[i] = fmt.Sprintf("RL-%03d", n)
	}
	doc, _ := json.Marshal(map[string]any{
		"decision":   decisionWords[decision%len(decisionWords)],
		"conf_level": conf,
		"reasons":    []string{"r"},
		"redlines":   redlines,
		"next_steps": []string{},
	})
	return string(doc)
}

// TestVerdictInvariants checks that every arbiter output is structurally valid
// for arbitrary judge replies and idea text.
func TestVerdictInvariants(t *testing.T) {
	set := rules.NewSet([]rules.Rule{
		{ID: "RL-001", Decision: rules.EffectDeny, Keywords: []string{"casino"}, Rationale: "r1"},
		{ID: "RL-002", Decision: rules.EffectCaution, Condition: "two-sided marketplace", Rationale: "r2"},
		{ID: "RL-003", Decision: rules.EffectCaution, Keywords: []string{"hardware"}, Rationale: "r3"},
	})

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	properties.Property("external verdicts are valid and call the judge at most twice", prop.ForAll(
		func(d1, d2 int, c1, c2 float64, ids1, ids2 []int) bool {
			judge := &scriptedJudge{replies: []string{replyFor(d1, c1, ids1), replyFor(d2, c2, ids2)}}
			out, err := NewExternal(judge).Decide(context.Background(), sampleIdea(), set)
			if err != nil {
				return false
			}
			if judge.calls() > 2 || judge.calls() != out.JudgeCalls {
				return false
			}
			return out.Verdict.Check(set.Has) == nil
		},
		gen.IntRange(0, len(decisionWords)-1),
		gen.IntRange(0, len(decisionWords)-1),
		gen.Float64Range(-2, 3),
		gen.Float64Range(-2, 3),
		gen.SliceOf(gen.IntRange(0, 6)),
		gen.SliceOf(gen.IntRange(0, 6)),
	))

	properties.Property("any triggered deny rule makes the heuristic deny", prop.ForAll(
		func(intent string, withCasino bool) bool {
			if withCasino {
				intent += " casino"
			}
			i := idea.Idea{Intent: intent, User: "u", Scenario: "s", Triggers: "t", Alts: "a"}
			v := DecideHeuristic(i, set.Rules())
			if v.Check(set.Has) != nil {
				return false
			}
			return !withCasino || v.Decision == verdict.Deny
		},
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
