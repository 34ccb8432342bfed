// Package idea defines the normalized startup idea evaluated by the arbiters.
package idea

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Idea is the subject under evaluation.
type Idea struct {
	Intent      string   `yaml:"intent" json:"intent"`
	User        string   `yaml:"user" json:"user"`
	Scenario    string   `yaml:"scenario" json:"scenario"`
	Triggers    string   `yaml:"triggers" json:"triggers"`
	Alts        string   `yaml:"alts" json:"alts"`
	Assumptions []string `yaml:"assumptions" json:"assumptions"`
	Risks       []string `yaml:"risks" json:"risks"`
}

// ValidationError lists every required field that is missing.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("idea missing required fields: %s", strings.Join(e.Missing, ", "))
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// required returns the required fields in declaration order.
func (i Idea) required() []struct{ name, value string } {
	return []struct{ name, value string }{
		{"intent", i.Intent},
		{"user", i.User},
		{"scenario", i.Scenario},
		{"triggers", i.Triggers},
		{"alts", i.Alts},
	}
}

// Validate checks that all required free-text fields are non-empty.
func (i Idea) Validate() error {
	var missing []string
	for _, f := range i.required() {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// FilledFields counts non-empty required fields.
func (i Idea) FilledFields() int {
	n := 0
	for _, f := range i.required() {
		if strings.TrimSpace(f.value) != "" {
			n++
		}
	}
	return n
}

// Corpus returns the lowercase concatenation of every text and list field.
func (i Idea) Corpus() string {
	parts := []string{i.Intent, i.User, i.Scenario, i.Triggers, i.Alts}
	parts = append(parts, i.Assumptions...)
	parts = append(parts, i.Risks...)
	return strings.ToLower(strings.Join(parts, " "))
}

// Record returns a copy of the idea for judge prompts. List fields are never
// nil so they serialize as empty arrays.
func (i Idea) Record() Idea {
	i.Assumptions = nonNil(i.Assumptions)
	i.Risks = nonNil(i.Risks)
	return i
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Load reads an idea YAML file and validates it.
func Load(path string) (Idea, error) {
	// #nosec G304 -- path is supplied by the operator.
	data, err := os.ReadFile(path)
	if err != nil {
		return Idea{}, fmt.Errorf("read idea: %w", err)
	}
	return Parse(data)
}

// Parse decodes an idea document and validates it.
func Parse(data []byte) (Idea, error) {
	var i Idea
	if err := yaml.Unmarshal(data, &i); err != nil {
		return Idea{}, fmt.Errorf("decode idea: %w", err)
	}
	i.Assumptions = nonNil(i.Assumptions)
	i.Risks = nonNil(i.Risks)
	if err := i.Validate(); err != nil {
		return Idea{}, err
	}
	return i, nil
}

// Save writes the idea as YAML, creating parent directories.
func Save(path string, i Idea) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create idea dir: %w", err)
	}
	i.Assumptions = nonNil(i.Assumptions)
	i.Risks = nonNil(i.Risks)
	data, err := yaml.Marshal(i)
	if err != nil {
		return fmt.Errorf("marshal idea: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
