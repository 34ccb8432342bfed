package model

import "fmt"

// RegistryConfig is the YAML form of a multi-endpoint registry, used under the
// "registry" key of the crucible config when a single model is not enough.
type RegistryConfig struct {
	Capabilities map[string]*CapabilityConfig `yaml:"capabilities"`
	Endpoints    map[string]*EndpointConfig   `yaml:"endpoints"`
	Defaults     *DefaultsConfig              `yaml:"defaults,omitempty"`
}

// Validate checks that every referenced endpoint is defined.
func (c *RegistryConfig) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("registry.endpoints is required")
	}
	for capName, cc := range c.Capabilities {
		if ParseCapability(capName) == "" {
			return fmt.Errorf("registry.capabilities: unknown capability %q", capName)
		}
		for _, name := range append(append([]string{}, cc.Preferred...), cc.Fallback...) {
			if _, ok := c.Endpoints[name]; !ok {
				return fmt.Errorf("registry.capabilities.%s references undefined endpoint %q", capName, name)
			}
		}
	}
	for name, ep := range c.Endpoints {
		if ep.Provider == "" || ep.Model == "" {
			return fmt.Errorf("registry.endpoints.%s: provider and model are required", name)
		}
	}
	return nil
}

// FromConfig converts a validated RegistryConfig into a Registry.
func FromConfig(cfg *RegistryConfig) *Registry {
	caps := make(map[Capability]*CapabilityConfig, len(cfg.Capabilities))
	for k, v := range cfg.Capabilities {
		caps[Capability(k)] = v
	}

	defaults := cfg.Defaults
	if defaults == nil {
		defaults = &DefaultsConfig{}
		for name := range cfg.Endpoints {
			if defaults.Model == "" || name < defaults.Model {
				defaults.Model = name
			}
		}
	}

	return &Registry{
		capabilities: caps,
		endpoints:    cfg.Endpoints,
		defaults:     defaults,
	}
}
