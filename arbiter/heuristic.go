package arbiter

import (
	"context"
	"strings"
	"unicode"

	"github.com/c360studio/crucible/idea"
	"github.com/c360studio/crucible/rules"
	"github.com/c360studio/crucible/verdict"
)

const (
	heuristicBase      = 0.55
	completenessWeight = 0.03
	completenessCap    = 0.15
	hitWeight          = 0.04
	hitCap             = 0.15
	heuristicMinConf   = 0.45
	heuristicMaxConf   = 0.95

	// minConditionToken is the length a condition word must exceed to count.
	minConditionToken = 3
)

// Heuristic is the deterministic keyword arbiter. It needs no judge.
type Heuristic struct{}

// Decide implements Arbiter. It never returns an error.
func (Heuristic) Decide(_ context.Context, i idea.Idea, set *rules.Set) (Outcome, error) {
	v := DecideHeuristic(i, set.Rules())
	return Outcome{
		Verdict: v,
		Mode:    ModeHeuristic,
		State:   StateValidated,
		Path:    []State{StateValidated},
	}, nil
}

// DecideHeuristic matches every rule against the idea corpus. Triggered rules
// contribute reasons, redlines and next steps in rule order; any deny wins
// over any caution, which wins over go. Severity and category are ignored.
func DecideHeuristic(i idea.Idea, rs []rules.Rule) verdict.Verdict {
	corpus := i.Corpus()

	decision := verdict.Go
	var reasons, redlines, steps []string
	for _, r := range rs {
		if !Triggered(r, corpus) {
			continue
		}
		switch r.Decision {
		case rules.EffectDeny:
			decision = verdict.Max(decision, verdict.Deny)
		case rules.EffectCaution:
			decision = verdict.Max(decision, verdict.Caution)
		}
		reasons = append(reasons, r.ID+": "+r.Rationale)
		redlines = append(redlines, r.ID)
		steps = append(steps, r.NextSteps...)
	}

	conf := heuristicBase +
		min(completenessWeight*float64(i.FilledFields()), completenessCap) +
		min(hitWeight*float64(len(redlines)), hitCap)
	conf = max(heuristicMinConf, min(conf, heuristicMaxConf))

	return verdict.New(decision, conf, reasons, redlines, steps)
}

// Triggered reports whether rule r fires for a lowercase corpus. Rules with
// non-blank keywords fire on any keyword substring; others fire on any
// condition word longer than three characters.
func Triggered(r rules.Rule, corpus string) bool {
	if kws := keywords(r); len(kws) > 0 {
		for _, kw := range kws {
			if strings.Contains(corpus, kw) {
				return true
			}
		}
		return false
	}
	for _, tok := range conditionTokens(r.Condition) {
		if strings.Contains(corpus, tok) {
			return true
		}
	}
	return false
}

func conditionTokens(condition string) []string {
	words := strings.FieldsFunc(strings.ToLower(condition), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
	})
	out := words[:0]
	for _, w := range words {
		if len([]rune(w)) > minConditionToken {
			out = append(out, w)
		}
	}
	return out
}

// keywords returns the rule's non-blank keywords, lowercased.
func keywords(r rules.Rule) []string {
	var out []string
	for _, kw := range r.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
