package arbiter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/c360studio/crucible/llm"
	"github.com/c360studio/crucible/verdict"
)

const (
	// defaultConf is used when the first reply carries no usable conf_level.
	defaultConf = 0.6

	fallbackConf   = 0.5
	fallbackReason = "Judge reply could not be parsed; falling back to caution"
)

// reasonEntry is one element of the optional reasons_map.
type reasonEntry struct {
	RuleID string
	Reason string
}

// judgeReply is the typed view of a judge document. A nil pointer or nil
// slice means the field was absent or unusable.
type judgeReply struct {
	Decision   *string
	ConfLevel  *float64
	Reasons    []string
	Redlines   []string
	NextSteps  []string
	ReasonsMap []reasonEntry

	hasReasons, hasRedlines, hasNextSteps bool
}

// parseReply decodes raw judge text. It strips a code fence, then tries a
// lenient extraction of the first JSON object when the text is not valid
// JSON. ok is false when no JSON object can be recovered or when the reply
// is valid JSON that is not an object.
func parseReply(raw string) (judgeReply, bool) {
	stripped := llm.StripCodeFence(raw)
	doc, ok := decodeObject(stripped)
	if !ok {
		// Valid JSON of another shape is a failed reply, not a wrapper to dig into.
		if json.Valid([]byte(stripped)) {
			return judgeReply{}, false
		}
		extracted := llm.ExtractJSON(raw)
		if extracted == "" {
			return judgeReply{}, false
		}
		if doc, ok = decodeObject(extracted); !ok {
			return judgeReply{}, false
		}
	}

	var r judgeReply
	if v, ok := doc["decision"]; ok {
		if s, ok := scalarString(v); ok {
			r.Decision = &s
		}
	}
	if v, ok := doc["conf_level"]; ok {
		if f, ok := scalarFloat(v); ok {
			r.ConfLevel = &f
		}
	}
	r.Reasons, r.hasReasons = stringList(doc["reasons"])
	r.Redlines, r.hasRedlines = stringList(doc["redlines"])
	r.NextSteps, r.hasNextSteps = stringList(doc["next_steps"])
	r.ReasonsMap = reasonsMap(doc["reasons_map"])
	return r, true
}

func decodeObject(s string) (map[string]json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &doc); err != nil || doc == nil {
		return nil, false
	}
	return doc, true
}

// isNull reports whether raw is absent or a JSON null.
func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// scalarString accepts any JSON scalar and renders it as text. null is absent.
func scalarString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	return "", false
}

// scalarFloat accepts a JSON number or a numeric string. null is absent.
func scalarFloat(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// stringList accepts an array of scalars or a lone string. present is false
// when the field is missing, null or of another shape.
func stringList(raw json.RawMessage) (list []string, present bool) {
	if isNull(raw) {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if s, ok := scalarString(raw); ok && strings.TrimSpace(s) != "" {
			return []string{s}, true
		}
		return nil, false
	}
	list = make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := scalarString(item); ok {
			list = append(list, s)
		} else {
			list = append(list, string(item))
		}
	}
	return list, true
}

func reasonsMap(raw json.RawMessage) []reasonEntry {
	if len(raw) == 0 {
		return nil
	}
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []reasonEntry
	for _, item := range items {
		id, ok := scalarString(item["rule_id"])
		if !ok || strings.TrimSpace(id) == "" {
			continue
		}
		reason, _ := scalarString(item["reason"])
		out = append(out, reasonEntry{RuleID: strings.TrimSpace(id), Reason: reason})
	}
	return out
}

// coerce turns a reply into a verdict. prior supplies the values for absent
// fields: the zero-reply defaults on the first pass, the first verdict on repair.
func (r judgeReply) coerce(prior verdict.Verdict) verdict.Verdict {
	decision := prior.Decision
	if r.Decision != nil {
		d, ok := verdict.ParseDecision(*r.Decision)
		if !ok {
			d = verdict.Caution
		}
		decision = d
	}

	conf := prior.ConfLevel
	if r.ConfLevel != nil {
		conf = *r.ConfLevel
	}

	reasons := prior.Reasons
	if r.hasReasons {
		reasons = r.Reasons
	}
	redlines := prior.Redlines
	if r.hasRedlines {
		redlines = r.Redlines
	}
	steps := prior.NextSteps
	if r.hasNextSteps {
		steps = r.NextSteps
	}

	if len(r.ReasonsMap) > 0 {
		if len(reasons) == 0 {
			reasons = make([]string, 0, len(r.ReasonsMap))
			for _, e := range r.ReasonsMap {
				reasons = append(reasons, fmt.Sprintf("%s: %s", e.RuleID, e.Reason))
			}
		}
		if len(redlines) == 0 {
			ids := make([]string, 0, len(r.ReasonsMap))
			for _, e := range r.ReasonsMap {
				ids = append(ids, e.RuleID)
			}
			redlines = verdict.Union(ids)
		}
	}

	ids := make([]string, 0, len(redlines))
	for _, id := range redlines {
		ids = append(ids, strings.TrimSpace(id))
	}

	return verdict.New(decision, conf, reasons, ids, steps)
}

// firstPassPrior holds the defaults applied to the first reply.
func firstPassPrior() verdict.Verdict {
	return verdict.New(verdict.Caution, defaultConf, nil, nil, nil)
}

// fallbackVerdict is the result for an unparseable first reply. It is never go.
func fallbackVerdict() verdict.Verdict {
	return verdict.New(verdict.Caution, fallbackConf, []string{fallbackReason}, nil, nil)
}
