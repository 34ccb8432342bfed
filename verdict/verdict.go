// Package verdict defines the Verdict value produced by every arbiter, the
// conservative merge policy between two verdicts, and verdict persistence.
package verdict

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Decision is the evaluation outcome.
type Decision string

// Decisions ordered from most to least conservative.
const (
	Deny    Decision = "deny"
	Caution Decision = "caution"
	Go      Decision = "go"
)

// Decisions lists every decision in confusion-matrix order.
var Decisions = []Decision{Deny, Caution, Go}

// Rank orders decisions: deny(2) > caution(1) > go(0). Unknown values rank -1.
func (d Decision) Rank() int {
	switch d {
	case Deny:
		return 2
	case Caution:
		return 1
	case Go:
		return 0
	}
	return -1
}

// IsValid reports whether d is one of deny, caution, go.
func (d Decision) IsValid() bool {
	return d.Rank() >= 0
}

// ParseDecision lowercases and trims s; ok is false for unknown values.
func ParseDecision(s string) (Decision, bool) {
	d := Decision(strings.ToLower(strings.TrimSpace(s)))
	return d, d.IsValid()
}

// Max returns the more conservative decision. Ties keep a.
func Max(a, b Decision) Decision {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Verdict is the structured evaluation result. Treat it as immutable once built.
type Verdict struct {
	Decision  Decision `json:"decision"`
	ConfLevel float64  `json:"conf_level"`
	Reasons   []string `json:"reasons"`
	Redlines  []string `json:"redlines"`
	NextSteps []string `json:"next_steps"`
}

// New builds a verdict with a normalized confidence and non-nil lists.
func New(d Decision, conf float64, reasons, redlines, nextSteps []string) Verdict {
	return Verdict{
		Decision:  d,
		ConfLevel: RoundConf(conf),
		Reasons:   cloneStrings(reasons),
		Redlines:  cloneStrings(redlines),
		NextSteps: cloneStrings(nextSteps),
	}
}

// RoundConf clamps c to [0, 1] and rounds it to two decimals. NaN becomes 0.
func RoundConf(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	}
	return math.Round(c*100) / 100
}

// Check validates the verdict invariants. allowed reports whether a redline id
// exists in the rule set used for the evaluation; nil skips that check.
func (v Verdict) Check(allowed func(id string) bool) error {
	if !v.Decision.IsValid() {
		return fmt.Errorf("decision %q is not one of deny|caution|go", v.Decision)
	}
	if v.ConfLevel < 0 || v.ConfLevel > 1 || math.IsNaN(v.ConfLevel) {
		return fmt.Errorf("conf_level %v outside [0,1]", v.ConfLevel)
	}
	if RoundConf(v.ConfLevel) != v.ConfLevel {
		return fmt.Errorf("conf_level %v not rounded to two decimals", v.ConfLevel)
	}
	if allowed != nil {
		for _, id := range v.Redlines {
			if !allowed(id) {
				return fmt.Errorf("redline %q is not a known rule id", id)
			}
		}
	}
	return nil
}

// MarshalJSON always emits lists as arrays, never null.
func (v Verdict) MarshalJSON() ([]byte, error) {
	type plain Verdict
	out := plain(v)
	out.Reasons = nonNil(out.Reasons)
	out.Redlines = nonNil(out.Redlines)
	out.NextSteps = nonNil(out.NextSteps)
	return json.Marshal(out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
