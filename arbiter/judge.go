package arbiter

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360studio/crucible/llm"
	"github.com/c360studio/crucible/model"
)

// Judge is the external decision source: one system prompt and one user
// prompt in, raw text out. Retries and timeouts belong to the implementation.
type Judge interface {
	Judge(ctx context.Context, system, user string) (string, error)
}

// JudgeFunc adapts a function to the Judge interface.
type JudgeFunc func(ctx context.Context, system, user string) (string, error)

// Judge calls f.
func (f JudgeFunc) Judge(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// Completer is the slice of llm.Client that LLMJudge needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// LLMJudge asks a chat model for a JSON verdict.
type LLMJudge struct {
	client      Completer
	capability  model.Capability
	temperature *float64
	maxTokens   int
}

// LLMJudgeOption configures an LLMJudge.
type LLMJudgeOption func(*LLMJudge)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) LLMJudgeOption {
	return func(j *LLMJudge) {
		j.temperature = &t
	}
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) LLMJudgeOption {
	return func(j *LLMJudge) {
		j.maxTokens = n
	}
}

// WithCapability overrides the registry capability used to pick a model.
func WithCapability(c model.Capability) LLMJudgeOption {
	return func(j *LLMJudge) {
		j.capability = c
	}
}

// NewLLMJudge wraps a completer. Defaults follow the judge config: capability
// judging, temperature 0.2, 800 tokens.
func NewLLMJudge(client Completer, opts ...LLMJudgeOption) *LLMJudge {
	temp := 0.2
	j := &LLMJudge{
		client:      client,
		capability:  model.CapabilityJudging,
		temperature: &temp,
		maxTokens:   800,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Judge implements Judge. An empty completion is returned as "{}".
func (j *LLMJudge) Judge(ctx context.Context, system, user string) (string, error) {
	resp, err := j.client.Complete(ctx, llm.Request{
		Capability: j.capability.String(),
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: j.temperature,
		MaxTokens:   j.maxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "{}", nil
	}
	return resp.Content, nil
}
