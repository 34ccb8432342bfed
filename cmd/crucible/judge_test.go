package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/c360studio/crucible/verdict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// judgeServer answers chat completions with replies in order, repeating
// the last one.
func judgeServer(t *testing.T, replies ...string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		n := int(calls.Add(1)) - 1
		reply := replies[min(n, len(replies)-1)]
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-test",
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 100, "completion_tokens": 20, "total_tokens": 120},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func useJudge(t *testing.T, dir, baseURL string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, "crucible.yaml"), fmt.Sprintf(`arbiter:
  mode: llm
model:
  provider: openai
  model: gpt-test
  base_url: %s/v1
  api_key: test-key
  retries: 0
batch:
  rate_per_second: 0
storage:
  dsn: .crucible/history.db
`, baseURL))
}

func TestEvaluateLLMRepairRound(t *testing.T) {
	srv, calls := judgeServer(t,
		`{"decision":"deny","conf_level":0.9,"reasons":["resells scraped profiles"],"redlines":["RL-999"],"next_steps":["talk to counsel"]}`,
		"```json\n{\"decision\":\"deny\",\"redlines\":[\"RL-001\"]}\n```",
	)
	dir := newProject(t)
	useJudge(t, dir, srv.URL)
	metricsPath := filepath.Join(dir, "metrics.prom")

	_, err := run(t, dir, "evaluate", filepath.Join(dir, "ideas", "data-broker.yaml"), "--metrics-out", metricsPath)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())

	v, err := verdict.ReadFile(filepath.Join(dir, "reports", "data-broker.verdict.json"))
	require.NoError(t, err)
	assert.Equal(t, verdict.Deny, v.Decision)
	assert.Equal(t, []string{"RL-001"}, v.Redlines)
	assert.InDelta(t, 0.9, v.ConfLevel, 1e-9)

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "crucible_redline_repairs_total")
	assert.Contains(t, string(prom), `crucible_judge_calls_total{provider="openai",result="ok"}`)

	out, err := run(t, dir, "history", "--calls")
	require.NoError(t, err)
	assert.Contains(t, out, "data-broker")
	assert.Equal(t, 2, strings.Count(out, "openai/gpt-test"))
}

func TestEvaluateLLMJudgeDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	dir := newProject(t)
	useJudge(t, dir, srv.URL)

	_, err := run(t, dir, "evaluate", filepath.Join(dir, "ideas", "data-broker.yaml"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "reports", "data-broker.verdict.json"))
}

func TestEvaluateHybridMergesHeuristic(t *testing.T) {
	srv, _ := judgeServer(t, `{"decision":"go","conf_level":0.8,"reasons":["fine"],"redlines":[]}`)
	dir := newProject(t)
	useJudge(t, dir, srv.URL)

	_, err := run(t, dir, "evaluate", filepath.Join(dir, "ideas", "data-broker.yaml"), "--mode", "hybrid")
	require.NoError(t, err)

	v, err := verdict.ReadFile(filepath.Join(dir, "reports", "data-broker.verdict.json"))
	require.NoError(t, err)
	assert.Equal(t, verdict.Deny, v.Decision, "heuristic deny wins the merge")
	assert.Contains(t, v.Redlines, "RL-001")
}
