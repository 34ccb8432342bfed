// Package model provides capability-based model selection for judge calls.
// Callers ask for a capability ("judging", "fast") and the registry resolves
// it to configured endpoints with a fallback chain.
package model

// Capability represents a semantic capability for model selection.
type Capability string

const (
	// CapabilityJudging is for verdict evaluation and redline repair.
	CapabilityJudging Capability = "judging"

	// CapabilityFast is for cheap, quick responses such as smoke checks.
	CapabilityFast Capability = "fast"
)

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityJudging, CapabilityFast:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	cap := Capability(s)
	if cap.IsValid() {
		return cap
	}
	return ""
}
