// Package metrics exposes Prometheus counters for evaluations and judge calls.
package metrics

import (
	"context"

	"github.com/c360studio/crucible/arbiter"
	"github.com/c360studio/crucible/llm"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crucible_evaluations_total",
		Help: "Total number of ideas evaluated, by arbiter mode and decision",
	}, []string{"mode", "decision"})
	judgeInvocationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crucible_judge_invocations_total",
		Help: "Total number of judge invocations made by the arbiters",
	})
	repairsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crucible_redline_repairs_total",
		Help: "Total number of repair calls issued for unknown redline ids",
	})
	fallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crucible_parse_fallbacks_total",
		Help: "Total number of unparseable judge replies replaced by the fallback verdict",
	})
	droppedRedlinesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crucible_dropped_redlines_total",
		Help: "Total number of unknown redline ids removed after repair",
	})
	judgeCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crucible_judge_calls_total",
		Help: "Total number of LLM calls, by provider and result",
	}, []string{"provider", "result"})
	judgeTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crucible_judge_tokens_total",
		Help: "Total number of tokens consumed by LLM calls, by kind",
	}, []string{"kind"})
)

// Register registers the collectors. Call once per registry.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(
		evaluationsTotal,
		judgeInvocationsTotal,
		repairsTotal,
		fallbacksTotal,
		droppedRedlinesTotal,
		judgeCallsTotal,
		judgeTokensTotal,
	)
}

// NewRegistry returns a private registry with the crucible collectors.
func NewRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	Register(r)
	return r
}

// ObserveOutcome counts one finished evaluation.
func ObserveOutcome(o arbiter.Outcome) {
	evaluationsTotal.WithLabelValues(string(o.Mode), string(o.Verdict.Decision)).Inc()
	judgeInvocationsTotal.Add(float64(o.JudgeCalls))

	for _, s := range o.Path {
		switch s {
		case arbiter.StateRepairInvoked:
			repairsTotal.Inc()
		case arbiter.StateFallback:
			fallbacksTotal.Inc()
		}
	}
	droppedRedlinesTotal.Add(float64(len(o.Dropped)))
}

// Recorder counts LLM calls. It implements llm.CallRecorder.
type Recorder struct{}

// RecordCall counts the call and its token usage.
func (Recorder) RecordCall(_ context.Context, r *llm.CallRecord) error {
	result := "ok"
	if r.Error != "" {
		result = "error"
	}
	provider := r.Provider
	if provider == "" {
		provider = "none"
	}
	judgeCallsTotal.WithLabelValues(provider, result).Inc()
	judgeTokensTotal.WithLabelValues("prompt").Add(float64(r.PromptTokens))
	judgeTokensTotal.WithLabelValues("completion").Add(float64(r.CompletionTokens))
	return nil
}

// WriteTextfile dumps the registry in the text exposition format, for the
// node-exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
