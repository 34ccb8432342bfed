package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError reports a rule file that failed to decode or validate.
// Any ParseError aborts the whole load: a partial rubric is never returned.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("rule file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// ErrNoRules is returned when a rule directory holds no rule files.
var ErrNoRules = errors.New("no rule files found")

// IsRuleFile reports whether name has a rule file extension.
func IsRuleFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadDir reads every rule file in dir, sorted by filename.
func LoadDir(dir string) ([]Rule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read rules dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsRuleFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoRules)
	}
	sort.Strings(names)

	loaded := make([]Rule, 0, len(names))
	seen := make(map[string]string, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		r, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[r.ID]; ok {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("duplicate id %s (first defined in %s)", r.ID, prev)}
		}
		seen[r.ID] = name
		loaded = append(loaded, r)
	}

	return loaded, nil
}

// LoadFile decodes and validates a single rule file.
func LoadFile(path string) (Rule, error) {
	// #nosec G304 -- path comes from the configured rules directory.
	data, err := os.ReadFile(path)
	if err != nil {
		return Rule{}, &ParseError{Path: path, Err: err}
	}
	r, err := Parse(data)
	if err != nil {
		return Rule{}, &ParseError{Path: path, Err: err}
	}
	return r, nil
}

// Parse decodes one YAML rule document and applies defaults and validation.
func Parse(data []byte) (Rule, error) {
	var r Rule
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&r); err != nil {
		if errors.Is(err, io.EOF) {
			return Rule{}, fmt.Errorf("empty rule document")
		}
		return Rule{}, fmt.Errorf("decode: %w", err)
	}
	r.normalize()
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

var ruleIDPattern = regexp.MustCompile(`^RL-(\d+)$`)

// NextID returns the next free RL-NNN identifier after the highest numbered rule.
func NextID(rules []Rule) string {
	highest := 0
	for _, r := range rules {
		m := ruleIDPattern.FindStringSubmatch(r.ID)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("RL-%03d", highest+1)
}

// Scaffold returns a template rule with the given id, ready to be edited.
func Scaffold(id string) Rule {
	return Rule{
		ID:        id,
		Title:     id,
		Scope:     "core",
		Severity:  SeverityMedium,
		Decision:  EffectCaution,
		Owner:     "core",
		Version:   "1",
		Keywords:  []string{},
		NextSteps: []string{"Define a narrow experiment to de-risk this redline."},
	}
}

// WriteFile saves a rule as YAML, refusing to overwrite an existing file.
func WriteFile(path string, r Rule) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("rule file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create rules dir: %w", err)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal rule: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// FileName derives a rule file name such as "07_custom_rule.yaml" from an RL id.
func FileName(id string) string {
	if m := ruleIDPattern.FindStringSubmatch(id); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return fmt.Sprintf("%02d_custom_rule.yaml", n)
		}
	}
	return strings.ToLower(id) + ".yaml"
}
