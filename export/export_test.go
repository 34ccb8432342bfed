package export

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/c360studio/crucible/verdict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSyncDir(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "dataset", "verdicts")

	writeFile(t, filepath.Join(src, "a.verdict.json"), `{"decision":"go"}`)
	writeFile(t, filepath.Join(src, "b.verdict.json"), `{"decision":"deny"}`)
	writeFile(t, filepath.Join(src, "a.md"), "# report")

	n, err := SyncDir(src, dst, "", true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, filepath.Join(dst, "a.verdict.json"))
	assert.NoFileExists(t, filepath.Join(dst, "a.md"))
}

func TestSyncDirOverwrite(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "a.verdict.json"), "new")
	writeFile(t, filepath.Join(dst, "a.verdict.json"), "old")

	n, err := SyncDir(src, dst, "", false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	data, _ := os.ReadFile(filepath.Join(dst, "a.verdict.json"))
	assert.Equal(t, "old", string(data))

	n, err = SyncDir(src, dst, "", true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	data, _ = os.ReadFile(filepath.Join(dst, "a.verdict.json"))
	assert.Equal(t, "new", string(data))
}

func TestSyncDirRecursivePattern(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "2026", "03", "x.verdict.json"), "{}")
	writeFile(t, filepath.Join(src, "y.verdict.json"), "{}")

	n, err := SyncDir(src, dst, "**/*.verdict.json", true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, filepath.Join(dst, "x.verdict.json"))
}

func TestSyncDirErrors(t *testing.T) {
	_, err := SyncDir(filepath.Join(t.TempDir(), "missing"), t.TempDir(), "", true)
	assert.Error(t, err)

	_, err = SyncDir(t.TempDir(), t.TempDir(), "[", true)
	assert.Error(t, err)
}

func TestWriteRecords(t *testing.T) {
	records := []Record{
		{Slug: "a", IdeaPath: "ideas/a.yaml", Mode: "heuristic",
			Verdict: verdict.New(verdict.Deny, 0.74, nil, []string{"RL-001", "RL-004"}, nil)},
		{Slug: "b", IdeaPath: "ideas/b.yaml", Mode: "heuristic",
			Verdict: verdict.New(verdict.Go, 0.7, nil, nil, nil)},
	}

	var jsonl bytes.Buffer
	require.NoError(t, WriteRecords(&jsonl, FormatJSONL, records))
	lines := strings.Split(strings.TrimSpace(jsonl.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"id":"a"`)
	assert.Contains(t, lines[0], `"redlines":["RL-001","RL-004"]`)

	var csvOut bytes.Buffer
	require.NoError(t, WriteRecords(&csvOut, FormatCSV, records))
	assert.Equal(t,
		"id,idea_path,mode,decision,conf_level,redlines\n"+
			"a,ideas/a.yaml,heuristic,deny,0.74,RL-001;RL-004\n"+
			"b,ideas/b.yaml,heuristic,go,0.70,\n",
		csvOut.String())

	assert.Error(t, WriteRecords(&bytes.Buffer{}, Format("xml"), records))
}

func TestGetFormatInfo(t *testing.T) {
	info, ok := GetFormatInfo(FormatCSV)
	require.True(t, ok)
	assert.Equal(t, ".csv", info.Extension)
	_, ok = GetFormatInfo("turtle")
	assert.False(t, ok)
	assert.Equal(t, []string{"csv", "jsonl"}, FormatNames())
}

type fakeConn struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
	closed   bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func (c *fakeConn) Flush() error { return nil }
func (c *fakeConn) Close()       { c.closed = true }

func TestPublisher(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, nil)

	v := verdict.New(verdict.Caution, 0.6, []string{"thin moat"}, nil, nil)
	require.NoError(t, p.Publish("ai-tutor", v))
	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "crucible.verdicts.ai-tutor", conn.subjects[0])

	got, err := verdict.Decode(conn.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, v, got)

	require.NoError(t, p.Close())
	assert.True(t, conn.closed)
}

func TestPublisherError(t *testing.T) {
	p := NewPublisher(&fakeConn{err: errors.New("nats: connection closed")}, nil)
	err := p.Publish("x", verdict.New(verdict.Go, 0.7, nil, nil, nil))
	assert.ErrorContains(t, err, "connection closed")
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "crucible.verdicts.a_b_c", Subject("a.b*c"))
	assert.Equal(t, "crucible.verdicts._", Subject(""))
}
