package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/c360studio/crucible/bench"
	"github.com/c360studio/crucible/verdict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRuleScrape = `id: RL-001
title: No scraping personal data
condition: the product scrapes personal data without consent
severity: critical
decision: deny
rationale: privacy law exposure
keywords: [scrape]
`

const testRuleMarketplace = `id: RL-002
title: Cold start
condition: a two-sided marketplace with no seed supply
severity: medium
decision: caution
rationale: liquidity takes years
keywords: [marketplace]
`

// newProject lays out a crucible project in a temp dir, pinned to
// heuristic mode so no judge is needed.
func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "crucible.yaml"), `arbiter:
  mode: heuristic
storage:
  dsn: .crucible/history.db
`)
	writeFile(t, filepath.Join(dir, "config", "rules", "core", "01_scrape.yaml"), testRuleScrape)
	writeFile(t, filepath.Join(dir, "config", "rules", "core", "02_marketplace.yaml"), testRuleMarketplace)
	writeFile(t, filepath.Join(dir, "ideas", "data-broker.yaml"), `intent: Scrape public profiles and resell them
user: recruiters
scenario: weekly sourcing
triggers: new role opened
alts: LinkedIn search
`)
	writeFile(t, filepath.Join(dir, "ideas", "tutor-match.yaml"), `intent: A marketplace matching tutors and parents
user: parents
scenario: exam season
triggers: bad grades
alts: word of mouth
`)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// run executes the CLI against dir and returns stdout.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	a := newApp()
	a.flags.workDir = dir
	a.flags.homeDir = t.TempDir()

	cmd := rootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err != nil {
		_ = a.finish()
	}
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "crucible version "+Version)
}

func TestEvaluateWritesVerdictAndReport(t *testing.T) {
	dir := newProject(t)

	out, err := run(t, dir, "evaluate", filepath.Join(dir, "ideas", "data-broker.yaml"), "--report")
	require.NoError(t, err)

	verdictPath := filepath.Join(dir, "reports", "data-broker.verdict.json")
	assert.Contains(t, out, verdictPath)

	v, err := verdict.ReadFile(verdictPath)
	require.NoError(t, err)
	assert.Equal(t, verdict.Deny, v.Decision)
	assert.Equal(t, []string{"RL-001"}, v.Redlines)

	body, err := os.ReadFile(filepath.Join(dir, "reports", "data-broker.md"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "RL-001")
}

func TestEvaluateRequiresIdea(t *testing.T) {
	_, err := run(t, newProject(t), "evaluate")
	assert.Error(t, err)
}

func TestEvaluateUnknownMode(t *testing.T) {
	dir := newProject(t)
	_, err := run(t, dir, "evaluate", filepath.Join(dir, "ideas", "data-broker.yaml"), "--mode", "oracle")
	assert.Error(t, err)
}

func TestReportFromStoredVerdict(t *testing.T) {
	dir := newProject(t)
	ideaPath := filepath.Join(dir, "ideas", "tutor-match.yaml")

	_, err := run(t, dir, "report", ideaPath)
	require.Error(t, err, "no verdict yet")

	_, err = run(t, dir, "evaluate", ideaPath)
	require.NoError(t, err)

	_, err = run(t, dir, "report", ideaPath, "--lang", "en")
	require.NoError(t, err)
	body, err := os.ReadFile(filepath.Join(dir, "reports", "tutor-match.md"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "RL-002")
}

func TestIntakeWritesIdea(t *testing.T) {
	dir := newProject(t)

	out, err := run(t, dir, "intake",
		"--desc", "Scrape job boards for salary data",
		"--user", "hr teams",
		"--risks", "legal,accuracy")
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	require.FileExists(t, path)
	assert.Equal(t, filepath.Join(dir, "ideas"), filepath.Dir(path))
}

func TestBatchStatsAndExport(t *testing.T) {
	dir := newProject(t)
	csvPath := filepath.Join(dir, "out.csv")

	out, err := run(t, dir, "batch", "--stats", "--export", "csv", "--out", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "[1/2] -> ")
	assert.Contains(t, out, "[2/2] -> ")

	data, err := os.ReadFile(filepath.Join(dir, "reports", statsFile))
	require.NoError(t, err)
	var stats bench.BatchStats
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.DecisionCounts[verdict.Deny])
	assert.Equal(t, 1, stats.DecisionCounts[verdict.Caution])

	exported, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(exported)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "data-broker")
	assert.Contains(t, lines[2], "tutor-match")
}

func TestBatchSkipsBrokenIdeas(t *testing.T) {
	dir := newProject(t)
	writeFile(t, filepath.Join(dir, "ideas", "broken.yaml"), "intent: [unterminated\n")

	out, err := run(t, dir, "batch")
	require.NoError(t, err)
	assert.Contains(t, out, "skipped")
	assert.FileExists(t, filepath.Join(dir, "reports", "data-broker.verdict.json"))
}

func TestBatchNoMatches(t *testing.T) {
	dir := newProject(t)
	out, err := run(t, dir, "batch", "--pattern", "*.json")
	require.NoError(t, err)
	assert.Contains(t, out, "No ideas matched")
}

func TestSyncThenBenchStoredVerdicts(t *testing.T) {
	dir := newProject(t)
	_, err := run(t, dir, "batch")
	require.NoError(t, err)

	dataset := filepath.Join(dir, "bench")
	verdicts := filepath.Join(dataset, "verdicts")
	out, err := run(t, dir, "sync", "--dst", verdicts)
	require.NoError(t, err)
	assert.Contains(t, out, "Copied 2 verdicts")

	writeFile(t, filepath.Join(dataset, "gold.jsonl"),
		`{"id":"data-broker","idea_path":"../ideas/data-broker.yaml","gold_decision":"deny","gold_redlines":["RL-001"]}
{"id":"tutor-match","idea_path":"../ideas/tutor-match.yaml","gold_decision":"go","gold_redlines":[]}
`)

	out, err = run(t, dir, "bench", "--dataset", filepath.Join(dataset, "gold.jsonl"), "--verdicts", verdicts)
	require.NoError(t, err)

	var summary bench.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Correct)
}

func TestBenchReevaluates(t *testing.T) {
	dir := newProject(t)
	writeFile(t, filepath.Join(dir, "gold.jsonl"),
		`{"id":"a","idea_path":"ideas/data-broker.yaml","gold_decision":"deny","gold_redlines":["RL-001"]}
`)
	summaryPath := filepath.Join(dir, "summary.json")

	out, err := run(t, dir, "bench", "--dataset", filepath.Join(dir, "gold.jsonl"), "--out", summaryPath)
	require.NoError(t, err)

	var summary bench.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 1, summary.Correct)
	assert.FileExists(t, summaryPath)
}

func TestRulesLintAndNew(t *testing.T) {
	dir := newProject(t)

	out, err := run(t, dir, "rules", "lint")
	require.NoError(t, err)
	assert.Contains(t, out, "2 rules OK")
	assert.Contains(t, out, "RL-002")

	out, err = run(t, dir, "rules", "new",
		"--title", "Regulated payments",
		"--decision", "deny",
		"--rationale", "licensing takes a year",
		"--condition", "moves customer money")
	require.NoError(t, err)
	assert.Contains(t, out, "RL-003")
	assert.FileExists(t, filepath.Join(dir, "config", "rules", "core", "03_custom_rule.yaml"))

	out, err = run(t, dir, "rules", "lint")
	require.NoError(t, err)
	assert.Contains(t, out, "3 rules OK")
}

func TestRulesNewRejectsBadSeverity(t *testing.T) {
	_, err := run(t, newProject(t), "rules", "new",
		"--severity", "apocalyptic",
		"--rationale", "r",
		"--condition", "c")
	assert.Error(t, err)
}

func TestHistoryListsEvaluations(t *testing.T) {
	dir := newProject(t)
	_, err := run(t, dir, "batch")
	require.NoError(t, err)

	out, err := run(t, dir, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "DECISION")
	assert.Contains(t, out, "data-broker")
	assert.Contains(t, out, "tutor-match")

	out, err = run(t, dir, "history", "data-broker", "--json")
	require.NoError(t, err)
	var evals []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &evals))
	require.Len(t, evals, 1)
	assert.Equal(t, "data-broker", evals[0]["slug"])
}

func TestHistoryDisabled(t *testing.T) {
	dir := newProject(t)
	writeFile(t, filepath.Join(dir, "crucible.yaml"), "arbiter:\n  mode: heuristic\nstorage:\n  dsn: \"off\"\n")
	_, err := run(t, dir, "history")
	assert.Error(t, err)
}

func TestMetricsTextfile(t *testing.T) {
	dir := newProject(t)
	metricsPath := filepath.Join(dir, "metrics.prom")

	_, err := run(t, dir, "batch", "--metrics-out", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "crucible_evaluations_total")
}

func TestRulesNewInEmptyDir(t *testing.T) {
	dir := newProject(t)
	rulesDir := filepath.Join(dir, "config", "rules", "core")
	require.NoError(t, os.RemoveAll(rulesDir))

	out, err := run(t, dir, "rules", "new", "--rationale", "r", "--condition", "c")
	require.NoError(t, err)
	assert.Contains(t, out, "RL-001")
	assert.FileExists(t, filepath.Join(rulesDir, "01_custom_rule.yaml"))
}
