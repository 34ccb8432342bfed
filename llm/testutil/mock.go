// Package testutil provides test doubles for code that calls an LLM.
package testutil

import (
	"context"
	"sync"

	"github.com/c360studio/crucible/llm"
)

// MockLLMClient is a thread-safe scripted completer.
//
//	mock := &MockLLMClient{
//	    Responses: []*llm.Response{
//	        {Content: `{"decision":"go","conf_level":0.7}`},
//	        {Content: `{"decision":"deny","redlines":["RL-001"]}`},
//	    },
//	}
//
// Responses are returned in order. Errs, when set, is consulted by call index
// first so a test can fail one specific call.
type MockLLMClient struct {
	mu              sync.Mutex
	capturedContext context.Context
	requests        []llm.Request

	Responses []*llm.Response
	Errs      []error
	Err       error // returned for every call when set

	responseIndex int
}

// Complete returns the next scripted response or error.
func (m *MockLLMClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.capturedContext = ctx
	call := len(m.requests)
	m.requests = append(m.requests, req)

	if m.Err != nil {
		return nil, m.Err
	}
	if call < len(m.Errs) && m.Errs[call] != nil {
		return nil, m.Errs[call]
	}

	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}

	return &llm.Response{Content: "", Model: "test-model"}, nil
}

// GetCapturedContext returns the last context passed to Complete.
func (m *MockLLMClient) GetCapturedContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capturedContext
}

// GetCallCount returns the number of times Complete was called.
func (m *MockLLMClient) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received.
func (m *MockLLMClient) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// Reset clears recorded calls and rewinds the script.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.responseIndex = 0
	m.capturedContext = nil
}
