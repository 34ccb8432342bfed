package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/c360studio/crucible/verdict"
	"github.com/google/uuid"
)

// Evaluation is one stored arbitration result.
type Evaluation struct {
	ID         string          `json:"id"`
	Slug       string          `json:"slug"`
	IdeaPath   string          `json:"idea_path,omitempty"`
	Mode       string          `json:"mode"`
	State      string          `json:"state"`
	JudgeCalls int             `json:"judge_calls"`
	Dropped    []string        `json:"dropped,omitempty"`
	Verdict    verdict.Verdict `json:"verdict"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewEvaluationID returns a fresh evaluation id. Callers that want judge
// calls linked to the evaluation create the id before arbitrating.
func NewEvaluationID() string {
	return uuid.New().String()
}

// SaveEvaluation inserts e, assigning an id and timestamp when missing.
func (s *Store) SaveEvaluation(ctx context.Context, e *Evaluation) error {
	if e.Slug == "" {
		return fmt.Errorf("evaluation slug is required")
	}
	if e.ID == "" {
		e.ID = NewEvaluationID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	vj, err := json.Marshal(e.Verdict)
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	dropped := e.Dropped
	if dropped == nil {
		dropped = []string{}
	}
	dj, err := json.Marshal(dropped)
	if err != nil {
		return fmt.Errorf("encode dropped: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO evaluations
  (id, slug, idea_path, mode, state, judge_calls, decision, conf_level, dropped_json, verdict_json, created_at)
  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Slug, e.IdeaPath, e.Mode, e.State, e.JudgeCalls,
			string(e.Verdict.Decision), e.Verdict.ConfLevel, string(dj), string(vj),
			e.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("insert evaluation: %w", err)
		}
		return nil
	})
}

const evaluationColumns = `id, slug, idea_path, mode, state, judge_calls, dropped_json, verdict_json, created_at`

// GetEvaluation loads one evaluation by id.
func (s *Store) GetEvaluation(ctx context.Context, id string) (*Evaluation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+evaluationColumns+` FROM evaluations WHERE id = ?`, id)
	e, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// ListEvaluations returns the newest evaluations first. An empty slug lists
// every idea; limit <= 0 means no limit.
func (s *Store) ListEvaluations(ctx context.Context, slug string, limit int) ([]*Evaluation, error) {
	q := `SELECT ` + evaluationColumns + ` FROM evaluations`
	var args []any
	if slug != "" {
		q += ` WHERE slug = ?`
		args = append(args, slug)
	}
	q += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var out []*Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row scanner) (*Evaluation, error) {
	var (
		e                     Evaluation
		droppedJSON, verdictJ string
		created               string
	)
	if err := row.Scan(&e.ID, &e.Slug, &e.IdeaPath, &e.Mode, &e.State, &e.JudgeCalls, &droppedJSON, &verdictJ, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(droppedJSON), &e.Dropped); err != nil {
		return nil, fmt.Errorf("decode dropped for %s: %w", e.ID, err)
	}
	if len(e.Dropped) == 0 {
		e.Dropped = nil
	}
	v, err := verdict.Decode([]byte(verdictJ))
	if err != nil {
		return nil, fmt.Errorf("decode verdict for %s: %w", e.ID, err)
	}
	e.Verdict = v
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", e.ID, err)
	}
	e.CreatedAt = t
	return &e, nil
}
