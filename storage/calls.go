package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/crucible/llm"
)

// RecordCall stores a judge call. It implements llm.CallRecorder.
func (s *Store) RecordCall(ctx context.Context, r *llm.CallRecord) error {
	fallbacks := r.FallbacksUsed
	if fallbacks == nil {
		fallbacks = []string{}
	}
	fj, err := json.Marshal(fallbacks)
	if err != nil {
		return fmt.Errorf("encode fallbacks: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO judge_calls
  (request_id, evaluation_id, trace_id, pass, capability, provider, model,
   prompt_tokens, completion_tokens, total_tokens, retries, fallbacks_json,
   response, error, started_at, duration_ms)
  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
  ON CONFLICT(request_id) DO NOTHING`,
		r.RequestID, r.EvaluationID, r.TraceID, r.Pass, r.Capability, r.Provider, r.Model,
		r.PromptTokens, r.CompletionTokens, r.TotalTokens, r.Retries, string(fj),
		r.Response, r.Error, r.StartedAt.UTC().Format(time.RFC3339Nano), r.DurationMs)
	if err != nil {
		return fmt.Errorf("insert judge call: %w", err)
	}
	return nil
}

// ListCalls returns the judge calls made for an evaluation, oldest first.
func (s *Store) ListCalls(ctx context.Context, evaluationID string) ([]*llm.CallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT request_id, evaluation_id, trace_id, pass, capability,
  provider, model, prompt_tokens, completion_tokens, total_tokens, retries, fallbacks_json,
  response, error, started_at, duration_ms
  FROM judge_calls WHERE evaluation_id = ? ORDER BY started_at, request_id`, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("list judge calls: %w", err)
	}
	defer rows.Close()

	var out []*llm.CallRecord
	for rows.Next() {
		var (
			r             llm.CallRecord
			fj, startedAt string
		)
		if err := rows.Scan(&r.RequestID, &r.EvaluationID, &r.TraceID, &r.Pass, &r.Capability,
			&r.Provider, &r.Model, &r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.Retries, &fj,
			&r.Response, &r.Error, &startedAt, &r.DurationMs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fj), &r.FallbacksUsed); err != nil {
			return nil, fmt.Errorf("decode fallbacks for %s: %w", r.RequestID, err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at for %s: %w", r.RequestID, err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
