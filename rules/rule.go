// Package rules loads and indexes the redline rules an idea is evaluated against.
// A rule set is loaded fresh for every evaluation run and never mutated afterwards.
package rules

import (
	"fmt"
	"strings"
)

// Severity ranks how serious a redline is. It is advisory: no arbiter weighs it.
type Severity string

// Severity levels accepted in rule files.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// IsValid reports whether s is a known severity.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Effect is the outcome a triggered rule forces. A rule never forces "go".
type Effect string

// Rule effects. EffectNone means the rule only documents a concern.
const (
	EffectNone    Effect = ""
	EffectDeny    Effect = "deny"
	EffectCaution Effect = "caution"
)

// legacyContinue is accepted from older rule files and treated as EffectNone.
const legacyContinue = "continue"

// Rule is a single redline as authored in a rule file.
type Rule struct {
	ID        string   `yaml:"id" json:"id"`
	Title     string   `yaml:"title,omitempty" json:"title,omitempty"`
	Scope     string   `yaml:"scope,omitempty" json:"scope"`
	Category  string   `yaml:"category,omitempty" json:"category,omitempty"`
	Condition string   `yaml:"condition" json:"condition"`
	Severity  Severity `yaml:"severity,omitempty" json:"severity"`
	Decision  Effect   `yaml:"decision,omitempty" json:"decision,omitempty"`
	Rationale string   `yaml:"rationale" json:"rationale"`
	Keywords  []string `yaml:"keywords,omitempty" json:"keywords"`
	NextSteps []string `yaml:"next_steps,omitempty" json:"next_steps"`

	// Provenance fields; carried through but never evaluated.
	Sources []string `yaml:"sources,omitempty" json:"sources,omitempty"`
	Owner   string   `yaml:"owner,omitempty" json:"owner,omitempty"`
	Version string   `yaml:"version,omitempty" json:"version,omitempty"`
	Sunset  string   `yaml:"sunset,omitempty" json:"sunset,omitempty"`
}

// normalize applies defaults for optional fields.
func (r *Rule) normalize() {
	r.ID = strings.TrimSpace(r.ID)
	if r.Scope == "" {
		r.Scope = "core"
	}
	if r.Severity == "" {
		r.Severity = SeverityHigh
	}
	r.Severity = Severity(strings.ToLower(string(r.Severity)))
	r.Decision = Effect(strings.ToLower(strings.TrimSpace(string(r.Decision))))
	if r.Decision == legacyContinue {
		r.Decision = EffectNone
	}
}

// Validate checks field-level constraints of a single rule.
func (r Rule) Validate() error {
	var problems []string
	if r.ID == "" {
		problems = append(problems, "id is required")
	}
	if strings.TrimSpace(r.Condition) == "" {
		problems = append(problems, "condition is required")
	}
	if strings.TrimSpace(r.Rationale) == "" {
		problems = append(problems, "rationale is required")
	}
	if !r.Severity.IsValid() {
		problems = append(problems, fmt.Sprintf("severity %q is not one of critical|high|medium|low", r.Severity))
	}
	switch r.Decision {
	case EffectNone, EffectDeny, EffectCaution:
	default:
		problems = append(problems, fmt.Sprintf("decision %q is not one of deny|caution", r.Decision))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// DecisionLabel renders the decision for rubric text, "none" when absent.
func (r Rule) DecisionLabel() string {
	if r.Decision == EffectNone {
		return "none"
	}
	return string(r.Decision)
}

// Set is an ordered, indexed view over a loaded rule slice.
type Set struct {
	rules []Rule
	index map[string]int
}

// NewSet indexes rules by id. Later duplicates never replace the first occurrence.
func NewSet(rules []Rule) *Set {
	s := &Set{
		rules: make([]Rule, len(rules)),
		index: make(map[string]int, len(rules)),
	}
	copy(s.rules, rules)
	for i, r := range s.rules {
		if _, ok := s.index[r.ID]; !ok {
			s.index[r.ID] = i
		}
	}
	return s
}

// Rules returns a copy of the rules in load order.
func (s *Set) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Len returns the number of rules.
func (s *Set) Len() int {
	return len(s.rules)
}

// Has reports whether id belongs to the set.
func (s *Set) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Get returns the rule with the given id.
func (s *Set) Get(id string) (Rule, bool) {
	i, ok := s.index[id]
	if !ok {
		return Rule{}, false
	}
	return s.rules[i], true
}

// IDs returns rule ids in load order.
func (s *Set) IDs() []string {
	ids := make([]string, len(s.rules))
	for i, r := range s.rules {
		ids[i] = r.ID
	}
	return ids
}
