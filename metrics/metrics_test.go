package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/c360studio/crucible/arbiter"
	"github.com/c360studio/crucible/llm"
	"github.com/c360studio/crucible/verdict"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOutcome(t *testing.T) {
	evalBefore := testutil.ToFloat64(evaluationsTotal.WithLabelValues("llm", "deny"))
	callsBefore := testutil.ToFloat64(judgeInvocationsTotal)
	repairsBefore := testutil.ToFloat64(repairsTotal)
	droppedBefore := testutil.ToFloat64(droppedRedlinesTotal)
	fallbacksBefore := testutil.ToFloat64(fallbacksTotal)

	ObserveOutcome(arbiter.Outcome{
		Verdict:    verdict.New(verdict.Deny, 0.8, nil, []string{"RL-001"}, nil),
		Mode:       arbiter.ModeLLM,
		State:      arbiter.StateRevalidated,
		Path:       []arbiter.State{arbiter.StateInvoked, arbiter.StateParsed, arbiter.StateInvalidRedlines, arbiter.StateRepairInvoked, arbiter.StateRevalidated},
		JudgeCalls: 2,
		Dropped:    []string{"RL-999", "RL-998"},
	})

	assert.Equal(t, evalBefore+1, testutil.ToFloat64(evaluationsTotal.WithLabelValues("llm", "deny")))
	assert.Equal(t, callsBefore+2, testutil.ToFloat64(judgeInvocationsTotal))
	assert.Equal(t, repairsBefore+1, testutil.ToFloat64(repairsTotal))
	assert.Equal(t, droppedBefore+2, testutil.ToFloat64(droppedRedlinesTotal))
	assert.Equal(t, fallbacksBefore, testutil.ToFloat64(fallbacksTotal))
}

func TestObserveFallback(t *testing.T) {
	before := testutil.ToFloat64(fallbacksTotal)
	ObserveOutcome(arbiter.Outcome{
		Verdict:    verdict.New(verdict.Caution, 0.5, nil, nil, nil),
		Mode:       arbiter.ModeLLM,
		State:      arbiter.StateFallback,
		Path:       []arbiter.State{arbiter.StateInvoked, arbiter.StateParseFailed, arbiter.StateFallback},
		JudgeCalls: 1,
	})
	assert.Equal(t, before+1, testutil.ToFloat64(fallbacksTotal))
}

func TestRecorder(t *testing.T) {
	var rec llm.CallRecorder = Recorder{}
	okBefore := testutil.ToFloat64(judgeCallsTotal.WithLabelValues("openai", "ok"))
	errBefore := testutil.ToFloat64(judgeCallsTotal.WithLabelValues("none", "error"))
	promptBefore := testutil.ToFloat64(judgeTokensTotal.WithLabelValues("prompt"))

	require.NoError(t, rec.RecordCall(context.Background(), &llm.CallRecord{Provider: "openai", PromptTokens: 30, CompletionTokens: 10}))
	require.NoError(t, rec.RecordCall(context.Background(), &llm.CallRecord{Error: "no usable endpoint"}))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(judgeCallsTotal.WithLabelValues("openai", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(judgeCallsTotal.WithLabelValues("none", "error")))
	assert.Equal(t, promptBefore+30, testutil.ToFloat64(judgeTokensTotal.WithLabelValues("prompt")))
}

func TestWriteTextfile(t *testing.T) {
	reg := NewRegistry()
	ObserveOutcome(arbiter.Outcome{
		Verdict: verdict.New(verdict.Go, 0.7, nil, nil, nil),
		Mode:    arbiter.ModeHeuristic,
		State:   arbiter.StateValidated,
	})

	path := filepath.Join(t.TempDir(), "crucible.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `crucible_evaluations_total{decision="go",mode="heuristic"}`)
}
