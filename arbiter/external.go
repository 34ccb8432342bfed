package arbiter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/crucible/idea"
	"github.com/c360studio/crucible/llm"
	"github.com/c360studio/crucible/rules"
	"github.com/c360studio/crucible/verdict"
)

// External asks a judge for a verdict and normalizes the reply.
//
// The flow is a fixed two-step machine, never a retry loop:
//
//	invoked -> parsed -> validated
//	invoked -> parse_failed -> fallback
//	invoked -> parsed -> invalid_redlines -> repair_invoked -> revalidated
//
// Ids still unknown after the single repair call are dropped.
type External struct {
	judge    Judge
	language string
	logger   *slog.Logger
}

// Option configures an External arbiter.
type Option func(*External)

// WithLanguage sets the language hint sent to the judge ("auto" by default).
func WithLanguage(lang string) Option {
	return func(e *External) {
		if lang != "" {
			e.language = lang
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *External) {
		e.logger = logger
	}
}

// NewExternal creates an external-judgment arbiter.
func NewExternal(judge Judge, opts ...Option) *External {
	e := &External{
		judge:    judge,
		language: "auto",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decide implements Arbiter. The only error it returns wraps ErrJudgeUnavailable
// (or a prompt encoding failure); bad judge output always yields a verdict.
func (e *External) Decide(ctx context.Context, i idea.Idea, set *rules.Set) (Outcome, error) {
	out := Outcome{Mode: ModeLLM}
	visit := func(s State) {
		out.State = s
		out.Path = append(out.Path, s)
	}

	user, err := userPrompt(i, set.Rules(), e.language)
	if err != nil {
		return out, err
	}

	visit(StateInvoked)
	raw, err := e.call(ctx, &out, "initial", user)
	if err != nil {
		return out, err
	}

	reply, ok := parseReply(raw)
	if !ok {
		visit(StateParseFailed)
		visit(StateFallback)
		out.Verdict = fallbackVerdict()
		e.logger.Warn("Judge reply unparseable, using fallback verdict",
			"reply_bytes", len(raw))
		return out, nil
	}
	visit(StateParsed)
	first := reply.coerce(firstPassPrior())

	out.Invalid = unknownIDs(first.Redlines, set)
	if len(out.Invalid) == 0 {
		visit(StateValidated)
		out.Verdict = first
		return out, nil
	}

	visit(StateInvalidRedlines)
	e.logger.Info("Judge referenced unknown redlines, requesting one repair",
		"invalid", out.Invalid)

	visit(StateRepairInvoked)
	repairRaw, err := e.call(ctx, &out, "repair", user+repairNote(raw, out.Invalid, set.IDs()))
	if err != nil {
		return out, err
	}

	repaired := first
	if r, ok := parseReply(repairRaw); ok {
		repaired = r.coerce(first)
	} else {
		e.logger.Warn("Repair reply unparseable, keeping first reply",
			"reply_bytes", len(repairRaw))
	}

	out.Dropped = unknownIDs(repaired.Redlines, set)
	if len(out.Dropped) > 0 {
		e.logger.Info("Dropping redlines still unknown after repair", "dropped", out.Dropped)
	}
	out.Verdict = filterRedlines(repaired, set)
	visit(StateRevalidated)
	return out, nil
}

func (e *External) call(ctx context.Context, out *Outcome, pass, user string) (string, error) {
	tc := llm.GetTraceContext(ctx)
	tc.Pass = pass
	out.JudgeCalls++

	raw, err := e.judge.Judge(llm.WithTraceContext(ctx, tc), systemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("%w: %s call: %w", ErrJudgeUnavailable, pass, err)
	}
	return raw, nil
}

// unknownIDs returns the distinct ids not in set, in first-seen order.
func unknownIDs(ids []string, set *rules.Set) []string {
	var out []string
	for _, id := range verdict.Union(ids) {
		if !set.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

func filterRedlines(v verdict.Verdict, set *rules.Set) verdict.Verdict {
	kept := make([]string, 0, len(v.Redlines))
	for _, id := range v.Redlines {
		if set.Has(id) {
			kept = append(kept, id)
		}
	}
	return verdict.New(v.Decision, v.ConfLevel, v.Reasons, kept, v.NextSteps)
}
