// Package bench scores verdicts against a labeled dataset and summarizes batches.
package bench

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/c360studio/crucible/verdict"
)

// Item is one labeled dataset record.
type Item struct {
	ID           string           `json:"id"`
	IdeaPath     string           `json:"idea_path"`
	GoldDecision verdict.Decision `json:"gold_decision"`
	GoldRedlines []string         `json:"gold_redlines"`
}

// LoadDataset reads a JSONL dataset. Relative idea paths are resolved against
// the dataset file's directory.
func LoadDataset(path string) ([]Item, error) {
	// #nosec G304 -- path is supplied by the operator.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	items, err := ReadDataset(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range items {
		if items[i].IdeaPath != "" && !filepath.IsAbs(items[i].IdeaPath) {
			items[i].IdeaPath = filepath.Join(base, items[i].IdeaPath)
		}
	}
	return items, nil
}

// ReadDataset decodes one JSON record per line. Blank lines are skipped.
func ReadDataset(r io.Reader) ([]Item, error) {
	var items []Item
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var it Item
		if err := json.Unmarshal([]byte(text), &it); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		d, ok := verdict.ParseDecision(string(it.GoldDecision))
		if !ok {
			return nil, fmt.Errorf("line %d: gold_decision %q is not one of deny|caution|go", line, it.GoldDecision)
		}
		it.GoldDecision = d
		if it.ID == "" {
			it.ID = fmt.Sprintf("line-%d", line)
		}
		items = append(items, it)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return items, nil
}
