package verdict

// Merge combines two verdicts for the same idea.
//
// The decision takes the conservative branch (ties keep a), while confidence
// takes the maximum of the two. Reasons are concatenated without
// de-duplication, redlines become their union in first-seen order, and next
// steps come from b when it has any.
func Merge(a, b Verdict) Verdict {
	reasons := make([]string, 0, len(a.Reasons)+len(b.Reasons))
	reasons = append(reasons, a.Reasons...)
	reasons = append(reasons, b.Reasons...)

	nextSteps := b.NextSteps
	if len(nextSteps) == 0 {
		nextSteps = a.NextSteps
	}

	conf := a.ConfLevel
	if b.ConfLevel > conf {
		conf = b.ConfLevel
	}

	return New(Max(a.Decision, b.Decision), conf, reasons, Union(a.Redlines, b.Redlines), nextSteps)
}

// Union returns the de-duplicated concatenation of lists, preserving first-seen order.
func Union(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
