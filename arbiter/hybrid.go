package arbiter

import (
	"context"

	"github.com/c360studio/crucible/idea"
	"github.com/c360studio/crucible/rules"
	"github.com/c360studio/crucible/verdict"
)

// Hybrid runs the heuristic arbiter and the external judge, then merges the
// two verdicts with the heuristic result as the first argument.
type Hybrid struct {
	External *External
}

// Decide implements Arbiter.
func (h *Hybrid) Decide(ctx context.Context, i idea.Idea, set *rules.Set) (Outcome, error) {
	heuristic := DecideHeuristic(i, set.Rules())

	out, err := h.External.Decide(ctx, i, set)
	if err != nil {
		return out, err
	}
	out.Mode = ModeHybrid
	out.Verdict = verdict.Merge(heuristic, out.Verdict)
	return out, nil
}
