package model

import (
	"testing"
	"time"
)

func TestParseCapability(t *testing.T) {
	tests := []struct {
		in   string
		want Capability
	}{
		{"judging", CapabilityJudging},
		{"fast", CapabilityFast},
		{"planning", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ParseCapability(tt.in); got != tt.want {
			t.Errorf("ParseCapability(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultRegistryChains(t *testing.T) {
	r := NewDefaultRegistry()

	if got := r.Resolve(CapabilityJudging); got != "gpt-4o-mini" {
		t.Errorf("Resolve(judging) = %q, want gpt-4o-mini", got)
	}
	if got := r.Resolve(Capability("unknown")); got != "gpt-4o-mini" {
		t.Errorf("Resolve(unknown) = %q, want default", got)
	}

	chain := r.GetFallbackChain(CapabilityJudging)
	if len(chain) != 2 || chain[0] != "gpt-4o-mini" || chain[1] != "qwen" {
		t.Errorf("unexpected judging chain %v", chain)
	}

	for _, name := range r.ListEndpoints() {
		if r.GetEndpoint(name) == nil {
			t.Errorf("listed endpoint %q has no config", name)
		}
	}
}

func TestSingleEndpoint(t *testing.T) {
	r := SingleEndpoint("local", &EndpointConfig{Provider: "ollama", Model: "llama3"})
	for _, c := range []Capability{CapabilityJudging, CapabilityFast, "other"} {
		if got := r.Resolve(c); got != "local" {
			t.Errorf("Resolve(%q) = %q, want local", c, got)
		}
	}
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("CRUCIBLE_TEST_KEY", "from-env")

	ep := &EndpointConfig{APIKeyEnv: "CRUCIBLE_TEST_KEY"}
	if got := ep.ResolveAPIKey(); got != "from-env" {
		t.Errorf("ResolveAPIKey() = %q, want from-env", got)
	}

	ep.APIKey = "inline"
	if got := ep.ResolveAPIKey(); got != "inline" {
		t.Errorf("ResolveAPIKey() = %q, want inline", got)
	}
}

func TestRegistryConfigValidate(t *testing.T) {
	valid := &RegistryConfig{
		Capabilities: map[string]*CapabilityConfig{
			"judging": {Preferred: []string{"a"}, Fallback: []string{"b"}},
		},
		Endpoints: map[string]*EndpointConfig{
			"a": {Provider: "openai", Model: "gpt-4o-mini"},
			"b": {Provider: "ollama", Model: "qwen2.5"},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	r := FromConfig(valid)
	if got := r.Resolve(CapabilityJudging); got != "a" {
		t.Errorf("Resolve(judging) = %q, want a", got)
	}
	if got := r.Resolve(CapabilityFast); got != "a" {
		t.Errorf("Resolve(fast) = %q, want default a", got)
	}

	missing := &RegistryConfig{
		Capabilities: map[string]*CapabilityConfig{"judging": {Preferred: []string{"ghost"}}},
		Endpoints:    map[string]*EndpointConfig{"a": {Provider: "openai", Model: "m"}},
	}
	if err := missing.Validate(); err == nil {
		t.Error("expected error for undefined endpoint")
	}

	unknown := &RegistryConfig{
		Capabilities: map[string]*CapabilityConfig{"planning": {Preferred: []string{"a"}}},
		Endpoints:    map[string]*EndpointConfig{"a": {Provider: "openai", Model: "m"}},
	}
	if err := unknown.Validate(); err == nil {
		t.Error("expected error for unknown capability")
	}
}

func TestCircuitBreaker(t *testing.T) {
	r := NewDefaultRegistry()
	r.SetHealthConfig(HealthConfig{FailureThreshold: 2, RecoveryTimeout: 20 * time.Millisecond})

	if h := r.GetEndpointHealth("gpt-4o-mini"); h != nil {
		t.Fatal("expected no health info before any calls")
	}

	r.MarkEndpointFailure("gpt-4o-mini")
	if !r.IsEndpointAvailable("gpt-4o-mini") {
		t.Error("one failure should not open the circuit")
	}

	r.MarkEndpointFailure("gpt-4o-mini")
	if r.IsEndpointAvailable("gpt-4o-mini") {
		t.Error("circuit should be open after threshold")
	}

	chain := r.GetAvailableFallbackChain(CapabilityJudging)
	if len(chain) != 1 || chain[0] != "qwen" {
		t.Errorf("available chain = %v, want [qwen]", chain)
	}

	time.Sleep(30 * time.Millisecond)
	if !r.IsEndpointAvailable("gpt-4o-mini") {
		t.Error("circuit should allow a trial after recovery timeout")
	}

	r.MarkEndpointSuccess("gpt-4o-mini")
	h := r.GetEndpointHealth("gpt-4o-mini")
	if h == nil || h.CircuitOpen || h.FailureCount != 0 {
		t.Errorf("unexpected health after success: %+v", h)
	}
}

func TestAvailableChainAllTripped(t *testing.T) {
	r := NewDefaultRegistry()
	r.SetHealthConfig(HealthConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour})
	r.MarkEndpointFailure("gpt-4o-mini")
	r.MarkEndpointFailure("qwen")

	chain := r.GetAvailableFallbackChain(CapabilityJudging)
	if len(chain) != 2 {
		t.Errorf("expected full chain when all endpoints are tripped, got %v", chain)
	}
}
