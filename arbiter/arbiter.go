// Package arbiter turns an idea and a rule set into a verdict.
//
// Two arbiters exist. Heuristic matches rule keywords against the idea text
// and never leaves the process. External asks an opaque judge (usually an
// LLM) for a verdict, validates the reply against the rule set and repairs
// unknown redline ids with at most one follow-up call. Hybrid runs both and
// merges them with the conservative merge policy.
package arbiter

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360studio/crucible/idea"
	"github.com/c360studio/crucible/rules"
	"github.com/c360studio/crucible/verdict"
)

// Mode selects which arbiter evaluates an idea.
type Mode string

// Arbitration modes.
const (
	ModeHeuristic Mode = "heuristic"
	ModeLLM       Mode = "llm"
	ModeHybrid    Mode = "hybrid"
)

// ParseMode accepts the mode names plus the "llm-only" alias used by older configs.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "heuristic", "rules":
		return ModeHeuristic, nil
	case "llm", "llm-only", "":
		return ModeLLM, nil
	case "hybrid":
		return ModeHybrid, nil
	}
	return "", fmt.Errorf("unknown arbiter mode %q (want heuristic|llm|hybrid)", s)
}

// NeedsJudge reports whether the mode calls an external judge.
func (m Mode) NeedsJudge() bool {
	return m == ModeLLM || m == ModeHybrid
}

// State is a step of the external arbitration state machine.
type State string

// Arbitration states. Terminal states are Validated, Fallback and Revalidated.
const (
	StateInvoked         State = "invoked"
	StateParsed          State = "parsed"
	StateValidated       State = "validated"
	StateParseFailed     State = "parse_failed"
	StateFallback        State = "fallback"
	StateInvalidRedlines State = "invalid_redlines"
	StateRepairInvoked   State = "repair_invoked"
	StateRevalidated     State = "revalidated"
)

// Outcome is a verdict plus how it was reached.
type Outcome struct {
	Verdict verdict.Verdict
	Mode    Mode

	// State is the terminal state; Path lists every state visited in order.
	State State
	Path  []State

	// JudgeCalls is 0 for heuristic runs and never more than 2.
	JudgeCalls int

	// Invalid holds the unknown ids from the first judge reply.
	Invalid []string

	// Dropped holds the ids removed by the final filter after repair.
	Dropped []string
}

// Arbiter produces a verdict for one idea against one rule set.
type Arbiter interface {
	Decide(ctx context.Context, i idea.Idea, set *rules.Set) (Outcome, error)
}

// New builds the arbiter for a mode. judge may be nil for ModeHeuristic.
func New(mode Mode, judge Judge, opts ...Option) (Arbiter, error) {
	if mode.NeedsJudge() && judge == nil {
		return nil, fmt.Errorf("arbiter mode %s requires a judge", mode)
	}
	switch mode {
	case ModeHeuristic:
		return Heuristic{}, nil
	case ModeLLM:
		return NewExternal(judge, opts...), nil
	case ModeHybrid:
		return &Hybrid{External: NewExternal(judge, opts...)}, nil
	}
	return nil, fmt.Errorf("unknown arbiter mode %q", mode)
}
