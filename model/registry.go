package model

import (
	"os"
	"sort"
	"sync"
)

// Registry maps capabilities to judge endpoints with fallback chains and
// tracks per-endpoint health.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[Capability]*CapabilityConfig
	endpoints    map[string]*EndpointConfig
	defaults     *DefaultsConfig
	health       *healthState
}

// CapabilityConfig defines model preferences for a capability.
type CapabilityConfig struct {
	// Description explains what this capability is for.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Preferred lists endpoints in order of preference.
	Preferred []string `yaml:"preferred" json:"preferred"`

	// Fallback lists backup endpoints tried after every preferred one failed.
	Fallback []string `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

// EndpointConfig defines an available model endpoint.
type EndpointConfig struct {
	// Provider is the wire protocol (openai, ollama, anthropic).
	Provider string `yaml:"provider" json:"provider"`

	// URL is the API base URL; empty uses the provider default.
	URL string `yaml:"base_url,omitempty" json:"url,omitempty"`

	// Model is the model identifier sent to the provider.
	Model string `yaml:"model" json:"model"`

	// APIKey is used verbatim when set.
	APIKey string `yaml:"api_key,omitempty" json:"-"`

	// APIKeyEnv names an environment variable holding the key.
	APIKeyEnv string `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`

	// Headers are extra request headers (OpenRouter attribution and the like).
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// MaxTokens caps the completion length.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// ResolveAPIKey returns the configured key, then the key from APIKeyEnv.
func (e *EndpointConfig) ResolveAPIKey() string {
	if e.APIKey != "" {
		return e.APIKey
	}
	if e.APIKeyEnv != "" {
		return os.Getenv(e.APIKeyEnv)
	}
	return ""
}

// DefaultsConfig holds default model settings.
type DefaultsConfig struct {
	// Model is the endpoint used when no capability matches.
	Model string `yaml:"model" json:"model"`
}

// NewRegistry creates a model registry with the given configuration.
func NewRegistry(caps map[Capability]*CapabilityConfig, endpoints map[string]*EndpointConfig) *Registry {
	return &Registry{
		capabilities: caps,
		endpoints:    endpoints,
		defaults: &DefaultsConfig{
			Model: "default",
		},
	}
}

// NewDefaultRegistry judges with OpenAI and falls back to a local Ollama model.
func NewDefaultRegistry() *Registry {
	return &Registry{
		capabilities: map[Capability]*CapabilityConfig{
			CapabilityJudging: {
				Description: "Verdict evaluation and redline repair",
				Preferred:   []string{"gpt-4o-mini"},
				Fallback:    []string{"qwen"},
			},
			CapabilityFast: {
				Description: "Quick responses, smoke checks",
				Preferred:   []string{"qwen"},
			},
		},
		endpoints: map[string]*EndpointConfig{
			"gpt-4o-mini": {
				Provider:  "openai",
				Model:     "gpt-4o-mini",
				APIKeyEnv: "OPENAI_API_KEY",
				MaxTokens: 800,
			},
			"qwen": {
				Provider:  "ollama",
				URL:       "http://localhost:11434/v1",
				Model:     "qwen2.5:14b",
				MaxTokens: 800,
			},
		},
		defaults: &DefaultsConfig{
			Model: "gpt-4o-mini",
		},
	}
}

// SingleEndpoint builds a registry where every capability resolves to one endpoint.
func SingleEndpoint(name string, ep *EndpointConfig) *Registry {
	chain := &CapabilityConfig{Preferred: []string{name}}
	return &Registry{
		capabilities: map[Capability]*CapabilityConfig{
			CapabilityJudging: chain,
			CapabilityFast:    chain,
		},
		endpoints: map[string]*EndpointConfig{name: ep},
		defaults:  &DefaultsConfig{Model: name},
	}
}

// Resolve returns the preferred endpoint for a capability.
func (r *Registry) Resolve(cap Capability) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.capabilities[cap]; ok && len(cfg.Preferred) > 0 {
		return cfg.Preferred[0]
	}
	return r.defaults.Model
}

// GetFallbackChain returns all endpoints for a capability in order of preference.
func (r *Registry) GetFallbackChain(cap Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.capabilities[cap]; ok {
		chain := make([]string, 0, len(cfg.Preferred)+len(cfg.Fallback))
		chain = append(chain, cfg.Preferred...)
		chain = append(chain, cfg.Fallback...)
		return chain
	}
	return []string{r.defaults.Model}
}

// GetEndpoint returns the endpoint configuration for a name, or nil.
func (r *Registry) GetEndpoint(name string) *EndpointConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.endpoints[name]
}

// SetEndpoint updates or adds an endpoint configuration.
func (r *Registry) SetEndpoint(name string, cfg *EndpointConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.endpoints == nil {
		r.endpoints = make(map[string]*EndpointConfig)
	}
	r.endpoints[name] = cfg
}

// SetCapability updates or adds a capability configuration.
func (r *Registry) SetCapability(cap Capability, cfg *CapabilityConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capabilities == nil {
		r.capabilities = make(map[Capability]*CapabilityConfig)
	}
	r.capabilities[cap] = cfg
}

// ListEndpoints returns configured endpoint names, sorted.
func (r *Registry) ListEndpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
