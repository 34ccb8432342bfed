package arbiter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360studio/crucible/idea"
	"github.com/c360studio/crucible/rules"
)

const systemPrompt = "You are a rigorous startup idea evaluator. Use the provided redline rules as the primary logic. " +
	"Return only a strict JSON object with keys: decision (deny|caution|go), conf_level (0-1), " +
	"reasons (array of short strings), redlines (array of rule ids), next_steps (array), " +
	"and optionally reasons_map (array of {rule_id, reason})."

const outputSchema = `{
  "decision": "deny|caution|go",
  "conf_level": 0.0,
  "reasons": ["..."],
  "redlines": ["RL-001"],
  "next_steps": ["..."],
  "reasons_map": [{"rule_id": "RL-001", "reason": "..."}]
}`

// Rubric renders one line per rule: "id [severity:decision] - condition - rationale: ...".
func Rubric(rs []rules.Rule) string {
	lines := make([]string, 0, len(rs))
	for _, r := range rs {
		lines = append(lines, fmt.Sprintf("%s [%s:%s] - %s - rationale: %s",
			r.ID, r.Severity, r.DecisionLabel(), r.Condition, r.Rationale))
	}
	return strings.Join(lines, "\n")
}

// ideaJSON renders the idea as indented JSON with field order preserved and
// non-ASCII text left as is.
func ideaJSON(i idea.Idea) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(i.Record()); err != nil {
		return "", fmt.Errorf("encode idea: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func userPrompt(i idea.Idea, rs []rules.Rule, language string) (string, error) {
	body, err := ideaJSON(i)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Language: %s.\n", language)
	b.WriteString("Evaluate this Idea against Redlines. Be conservative.\n\n")
	fmt.Fprintf(&b, "Idea:\n%s\n\n", body)
	fmt.Fprintf(&b, "Redlines:\n%s\n\n", Rubric(rs))
	fmt.Fprintf(&b, "Output JSON schema:\n%s", outputSchema)
	return b.String(), nil
}

// repairNote is appended to the user prompt for the single corrective call.
func repairNote(previous string, invalid, allowed []string) string {
	var b strings.Builder
	b.WriteString("\n\nYour previous answer was:\n")
	b.WriteString(strings.TrimSpace(previous))
	fmt.Fprintf(&b, "\n\nIt referenced redline ids that do not exist: %s.\n", strings.Join(invalid, ", "))
	fmt.Fprintf(&b, "Use only these ids in redlines and reasons_map: %s.\n", strings.Join(allowed, ", "))
	b.WriteString("Update reasons and reasons_map to match, then return the full corrected JSON object.")
	return b.String()
}
