// Package evaluator runs the per-idea pipeline: load the idea, arbitrate,
// persist the verdict, then hand the outcome to history, publishing and
// metrics sinks.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360studio/crucible/arbiter"
	"github.com/c360studio/crucible/idea"
	"github.com/c360studio/crucible/llm"
	"github.com/c360studio/crucible/rules"
	"github.com/c360studio/crucible/storage"
	"github.com/c360studio/crucible/verdict"
	"github.com/google/uuid"
)

// HistoryStore persists finished evaluations.
type HistoryStore interface {
	SaveEvaluation(ctx context.Context, e *storage.Evaluation) error
}

// Publisher forwards verdicts to downstream consumers.
type Publisher interface {
	Publish(slug string, v verdict.Verdict) error
}

// ReportWriter renders the one-page report for an evaluated idea.
type ReportWriter interface {
	WriteFile(path string, i idea.Idea, v verdict.Verdict, lang string) error
}

// Result describes one evaluated idea.
type Result struct {
	EvaluationID string
	Slug         string
	IdeaPath     string
	VerdictPath  string
	ReportPath   string
	Outcome      arbiter.Outcome

	// Err is set for ideas skipped by EvaluateAll because they failed to load.
	Err error
}

// Evaluator evaluates ideas against one rule set with one arbiter.
type Evaluator struct {
	arbiter    arbiter.Arbiter
	mode       arbiter.Mode
	rules      *rules.Set
	reportsDir string

	reports  ReportWriter
	lang     string
	store    HistoryStore
	pub      Publisher
	observer func(arbiter.Outcome)
	logger   *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithReports also renders a markdown report next to each verdict.
func WithReports(w ReportWriter, lang string) Option {
	return func(e *Evaluator) {
		e.reports = w
		e.lang = lang
	}
}

// WithHistory saves every evaluation to s.
func WithHistory(s HistoryStore) Option {
	return func(e *Evaluator) { e.store = s }
}

// WithPublisher publishes every verdict through p.
func WithPublisher(p Publisher) Option {
	return func(e *Evaluator) { e.pub = p }
}

// WithObserver calls fn with every outcome, e.g. metrics.ObserveOutcome.
func WithObserver(fn func(arbiter.Outcome)) Option {
	return func(e *Evaluator) { e.observer = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = logger }
}

// New creates an evaluator writing verdicts under reportsDir.
func New(a arbiter.Arbiter, mode arbiter.Mode, set *rules.Set, reportsDir string, opts ...Option) *Evaluator {
	e := &Evaluator{
		arbiter:    a,
		mode:       mode,
		rules:      set,
		reportsDir: reportsDir,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SlugFor derives the idea slug from its file name.
func SlugFor(ideaPath string) string {
	stem := strings.TrimSuffix(filepath.Base(ideaPath), filepath.Ext(ideaPath))
	return idea.Slugify(stem)
}

// EvaluateFile loads, arbitrates and persists one idea file.
func (e *Evaluator) EvaluateFile(ctx context.Context, path string) (*Result, error) {
	i, err := idea.Load(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return e.Evaluate(ctx, path, i)
}

// Evaluate arbitrates an already loaded idea. path is used for the slug and
// the history record.
func (e *Evaluator) Evaluate(ctx context.Context, path string, i idea.Idea) (*Result, error) {
	res := &Result{
		EvaluationID: storage.NewEvaluationID(),
		Slug:         SlugFor(path),
		IdeaPath:     path,
	}

	ctx = llm.WithTraceContext(ctx, llm.TraceContext{
		TraceID:      uuid.New().String(),
		EvaluationID: res.EvaluationID,
	})

	start := time.Now()
	out, err := e.arbiter.Decide(ctx, i, e.rules)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", path, err)
	}
	res.Outcome = out

	e.logger.Info("Idea evaluated",
		"slug", res.Slug,
		"mode", out.Mode,
		"decision", out.Verdict.Decision,
		"conf_level", out.Verdict.ConfLevel,
		"redlines", out.Verdict.Redlines,
		"state", out.State,
		"judge_calls", out.JudgeCalls,
		"duration", time.Since(start))
	if len(out.Dropped) > 0 {
		e.logger.Warn("Dropped unknown redline ids after repair",
			"slug", res.Slug,
			"dropped", out.Dropped)
	}

	res.VerdictPath = verdict.PathFor(e.reportsDir, res.Slug)
	if err := verdict.WriteFile(res.VerdictPath, out.Verdict); err != nil {
		return nil, fmt.Errorf("write verdict: %w", err)
	}

	if e.reports != nil {
		res.ReportPath = filepath.Join(e.reportsDir, res.Slug+".md")
		if err := e.reports.WriteFile(res.ReportPath, i, out.Verdict, e.lang); err != nil {
			return nil, fmt.Errorf("write report: %w", err)
		}
	}

	e.afterEvaluate(ctx, res)
	return res, nil
}

// afterEvaluate feeds the optional sinks. Their failures are logged and
// never change the verdict.
func (e *Evaluator) afterEvaluate(ctx context.Context, res *Result) {
	if e.observer != nil {
		e.observer(res.Outcome)
	}
	if e.store != nil {
		rec := &storage.Evaluation{
			ID:         res.EvaluationID,
			Slug:       res.Slug,
			IdeaPath:   res.IdeaPath,
			Mode:       string(res.Outcome.Mode),
			State:      string(res.Outcome.State),
			JudgeCalls: res.Outcome.JudgeCalls,
			Dropped:    res.Outcome.Dropped,
			Verdict:    res.Outcome.Verdict,
		}
		if err := e.store.SaveEvaluation(context.WithoutCancel(ctx), rec); err != nil {
			e.logger.Warn("Failed to save evaluation history", "slug", res.Slug, "error", err)
		}
	}
	if e.pub != nil {
		if err := e.pub.Publish(res.Slug, res.Outcome.Verdict); err != nil {
			e.logger.Warn("Failed to publish verdict", "slug", res.Slug, "error", err)
		}
	}
}

// LoadError reports an idea file that could not be read or validated. Batch
// runs skip such ideas instead of aborting.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load idea %s: %v", e.Path, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
