package verdict

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionOrdering(t *testing.T) {
	assert.Greater(t, Deny.Rank(), Caution.Rank())
	assert.Greater(t, Caution.Rank(), Go.Rank())
	assert.Equal(t, -1, Decision("maybe").Rank())

	assert.Equal(t, Deny, Max(Caution, Deny))
	assert.Equal(t, Caution, Max(Caution, Go))
	assert.Equal(t, Go, Max(Go, Go))

	d, ok := ParseDecision(" GO ")
	assert.True(t, ok)
	assert.Equal(t, Go, d)
	_, ok = ParseDecision("continue")
	assert.False(t, ok)
}

func TestRoundConf(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.554, 0.55},
		{0.556, 0.56},
		{1.5, 1.0},
		{-0.2, 0},
		{math.NaN(), 0},
		{0.7, 0.7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundConf(tt.in), "RoundConf(%v)", tt.in)
	}
}

func TestCheck(t *testing.T) {
	allowed := func(id string) bool { return id == "RL-001" }

	require.NoError(t, New(Deny, 0.8, nil, []string{"RL-001"}, nil).Check(allowed))
	assert.Error(t, New(Deny, 0.8, nil, []string{"RL-999"}, nil).Check(allowed))
	assert.Error(t, Verdict{Decision: "maybe"}.Check(nil))
	assert.Error(t, Verdict{Decision: Go, ConfLevel: 0.123}.Check(nil))
	assert.Error(t, Verdict{Decision: Go, ConfLevel: 1.2}.Check(nil))
}

func TestMerge(t *testing.T) {
	a := New(Caution, 0.9, []string{"a1"}, []string{"RL-001", "RL-002"}, []string{"step-a"})
	b := New(Deny, 0.6, []string{"b1", "a1"}, []string{"RL-002", "RL-003", "RL-003"}, nil)

	m := Merge(a, b)
	assert.Equal(t, Deny, m.Decision)
	assert.Equal(t, 0.9, m.ConfLevel)
	assert.Equal(t, []string{"a1", "b1", "a1"}, m.Reasons)
	assert.Equal(t, []string{"RL-001", "RL-002", "RL-003"}, m.Redlines)
	assert.Equal(t, []string{"step-a"}, m.NextSteps)

	withSteps := New(Go, 0.5, nil, nil, []string{"step-b"})
	assert.Equal(t, []string{"step-b"}, Merge(a, withSteps).NextSteps)
	assert.Equal(t, Caution, Merge(a, withSteps).Decision)
}

func TestMerge_TieKeepsFirst(t *testing.T) {
	a := New(Caution, 0.4, nil, nil, nil)
	b := New(Caution, 0.7, nil, nil, nil)
	m := Merge(a, b)
	assert.Equal(t, Caution, m.Decision)
	assert.Equal(t, 0.7, m.ConfLevel)
}

func TestEncodeDecode(t *testing.T) {
	v := New(Go, 0.66, nil, nil, nil)
	data, err := Encode(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reasons": []`)
	assert.Contains(t, string(data), `"next_steps": []`)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, v, back)
}

func TestDecode_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad decision", `{"decision":"maybe","conf_level":0.5,"reasons":[],"redlines":[],"next_steps":[]}`},
		{"conf above one", `{"decision":"go","conf_level":1.5,"reasons":[],"redlines":[],"next_steps":[]}`},
		{"missing redlines", `{"decision":"go","conf_level":0.5,"reasons":[],"next_steps":[]}`},
		{"redline not string", `{"decision":"go","conf_level":0.5,"reasons":[],"redlines":[7],"next_steps":[]}`},
		{"not json", `decision: go`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestWriteReadFile(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(filepath.Join(dir, "reports"), "demo-idea")
	assert.Equal(t, "demo-idea.verdict.json", filepath.Base(path))

	v := New(Deny, 0.82, []string{"RL-001: too risky <b>"}, []string{"RL-001"}, []string{"pivot"})
	require.NoError(t, WriteFile(path, v))

	back, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, v, back)
}
