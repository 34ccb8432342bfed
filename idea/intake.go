package idea

import "strings"

// Intake defaults used when a one-line description is all we have.
const (
	DefaultUser     = "early adopters"
	DefaultScenario = "initial use case"
	DefaultTriggers = "pain/need trigger"
	DefaultAlts     = "status quo / competitors"
)

// IntakeOptions overrides the defaults applied by FromDescription.
type IntakeOptions struct {
	User        string
	Scenario    string
	Triggers    string
	Alts        string
	Assumptions []string
	Risks       []string
}

// FromDescription builds a complete idea from a short description.
// An empty description becomes "Untitled idea"; the description doubles
// as the only assumption unless assumptions are given.
func FromDescription(desc string, opts IntakeOptions) Idea {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		desc = "Untitled idea"
	}
	i := Idea{
		Intent:      desc,
		User:        orDefault(opts.User, DefaultUser),
		Scenario:    orDefault(opts.Scenario, DefaultScenario),
		Triggers:    orDefault(opts.Triggers, DefaultTriggers),
		Alts:        orDefault(opts.Alts, DefaultAlts),
		Assumptions: opts.Assumptions,
		Risks:       nonNil(opts.Risks),
	}
	if len(i.Assumptions) == 0 {
		i.Assumptions = []string{desc}
	}
	return i
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// Slugify keeps the first six lowercase words of text joined by hyphens.
func Slugify(text string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(words) > 6 {
		words = words[:6]
	}
	if len(words) == 0 {
		return "idea"
	}
	return strings.Join(words, "-")
}
