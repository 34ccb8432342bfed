package llm

import (
	"context"
	"errors"
	"time"
)

// CallRecord describes one judge call for the evaluation history.
type CallRecord struct {
	RequestID    string    `json:"request_id"`
	TraceID      string    `json:"trace_id,omitempty"`
	EvaluationID string    `json:"evaluation_id,omitempty"`
	Pass         string    `json:"pass,omitempty"`
	Capability   string    `json:"capability"`
	Model        string    `json:"model"`
	Provider     string    `json:"provider"`
	Messages     []Message `json:"messages"`
	Response     string    `json:"response"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	FinishReason  string    `json:"finish_reason,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	DurationMs    int64     `json:"duration_ms"`
	Error         string    `json:"error,omitempty"`
	Retries       int       `json:"retries"`
	FallbacksUsed []string  `json:"fallbacks_used,omitempty"`
}

// CallRecorder persists or observes call records. Implementations must be
// safe for concurrent use; batch evaluation calls them from many goroutines.
type CallRecorder interface {
	RecordCall(ctx context.Context, record *CallRecord) error
}

// MultiRecorder fans a record out to several recorders.
type MultiRecorder []CallRecorder

// RecordCall calls every recorder and joins their errors.
func (m MultiRecorder) RecordCall(ctx context.Context, record *CallRecord) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.RecordCall(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TraceContext ties judge calls back to the evaluation that issued them.
type TraceContext struct {
	TraceID      string
	EvaluationID string
	Pass         string
}

type traceContextKey struct{}

// WithTraceContext adds trace information to a context.
func WithTraceContext(ctx context.Context, tc TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// GetTraceContext extracts trace information from a context.
func GetTraceContext(ctx context.Context) TraceContext {
	if tc, ok := ctx.Value(traceContextKey{}).(TraceContext); ok {
		return tc
	}
	return TraceContext{}
}
