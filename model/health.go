package model

import (
	"sync"
	"time"
)

// EndpointHealth tracks the health status of a judge endpoint.
type EndpointHealth struct {
	Available       bool      `json:"available"`
	LastSuccess     time.Time `json:"last_success,omitempty"`
	LastFailure     time.Time `json:"last_failure,omitempty"`
	FailureCount    int       `json:"failure_count"`
	CircuitOpen     bool      `json:"circuit_open"`
	CircuitOpenedAt time.Time `json:"circuit_opened_at,omitempty"`
}

// HealthConfig configures the circuit breaker.
type HealthConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit stays closed to traffic.
	RecoveryTimeout time.Duration
}

// DefaultHealthConfig returns the breaker settings used when none are set.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

type healthState struct {
	mu       sync.Mutex
	config   HealthConfig
	statuses map[string]*EndpointHealth
}

// healthTracker lazily creates the breaker state.
func (r *Registry) healthTracker() *healthState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.health == nil {
		r.health = &healthState{
			config:   DefaultHealthConfig(),
			statuses: make(map[string]*EndpointHealth),
		}
	}
	return r.health
}

func (h *healthState) status(name string) *EndpointHealth {
	s, ok := h.statuses[name]
	if !ok {
		s = &EndpointHealth{Available: true}
		h.statuses[name] = s
	}
	return s
}

// SetHealthConfig replaces the circuit breaker configuration.
func (r *Registry) SetHealthConfig(cfg HealthConfig) {
	h := r.healthTracker()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.config = cfg
}

// MarkEndpointSuccess closes the circuit and resets the failure count.
func (r *Registry) MarkEndpointSuccess(name string) {
	h := r.healthTracker()
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.status(name)
	s.LastSuccess = time.Now()
	s.FailureCount = 0
	s.Available = true
	s.CircuitOpen = false
}

// MarkEndpointFailure records a failure and opens the circuit at the threshold.
func (r *Registry) MarkEndpointFailure(name string) {
	h := r.healthTracker()
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.status(name)
	s.LastFailure = time.Now()
	s.FailureCount++
	if s.FailureCount >= h.config.FailureThreshold {
		s.CircuitOpen = true
		s.CircuitOpenedAt = time.Now()
		s.Available = false
	}
}

// IsEndpointAvailable is false only while a circuit is open and the recovery
// timeout has not elapsed. After the timeout one trial request is let through.
func (r *Registry) IsEndpointAvailable(name string) bool {
	h := r.healthTracker()
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.statuses[name]
	if !ok || !s.CircuitOpen {
		return true
	}
	return time.Since(s.CircuitOpenedAt) > h.config.RecoveryTimeout
}

// GetEndpointHealth returns a copy of the endpoint status, or nil if unknown.
func (r *Registry) GetEndpointHealth(name string) *EndpointHealth {
	h := r.healthTracker()
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.statuses[name]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// GetAvailableFallbackChain filters the fallback chain to endpoints with a
// closed circuit. When every endpoint is tripped the full chain is returned.
func (r *Registry) GetAvailableFallbackChain(cap Capability) []string {
	chain := r.GetFallbackChain(cap)
	available := make([]string, 0, len(chain))
	for _, name := range chain {
		if r.IsEndpointAvailable(name) {
			available = append(available, name)
		}
	}
	if len(available) == 0 {
		return chain
	}
	return available
}
