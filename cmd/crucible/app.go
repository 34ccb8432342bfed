package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/c360studio/crucible/arbiter"
	"github.com/c360studio/crucible/config"
	"github.com/c360studio/crucible/evaluator"
	"github.com/c360studio/crucible/export"
	"github.com/c360studio/crucible/llm"
	"github.com/c360studio/crucible/metrics"
	"github.com/c360studio/crucible/report"
	"github.com/c360studio/crucible/rules"
	"github.com/c360studio/crucible/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

type cliFlags struct {
	configPath string
	logLevel   string
	logFile    string
	metricsOut string

	// workDir and homeDir pin config discovery in tests.
	workDir string
	homeDir string
}

// app holds what every subcommand shares: config, logger, metrics and the
// lazily opened history store and NATS publisher.
type app struct {
	flags   cliFlags
	cfg     *config.Config
	logger  *slog.Logger
	metrics *prometheus.Registry

	store     *storage.Store
	publisher *export.Publisher
	closers   []func() error
}

func newApp() *app {
	return &app{}
}

func (a *app) setup(cmd *cobra.Command) error {
	var opts []config.LoaderOption
	if a.flags.workDir != "" {
		opts = append(opts, config.WithWorkDir(a.flags.workDir))
	}
	if a.flags.homeDir != "" {
		opts = append(opts, config.WithHomeDir(a.flags.homeDir))
	}

	bootstrap := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: parseLevel(a.flags.logLevel)}))
	cfg, err := config.NewLoader(bootstrap, opts...).Load(a.flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	if a.flags.logFile != "" {
		cfg.Log.File = a.flags.logFile
	}
	a.cfg = cfg

	logger, closer := newLogger(cfg.Log, cfg.Path(cfg.Log.File), cmd.ErrOrStderr())
	if closer != nil {
		a.closers = append(a.closers, closer.Close)
	}
	a.logger = logger
	slog.SetDefault(logger)

	a.metrics = metrics.NewRegistry()
	return nil
}

// finish writes the metrics textfile and releases resources.
func (a *app) finish() error {
	var firstErr error
	if a.flags.metricsOut != "" && a.metrics != nil {
		if err := metrics.WriteTextfile(a.flags.metricsOut, a.metrics); err != nil {
			firstErr = fmt.Errorf("write metrics: %w", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// newLogger logs to stderr and, when file is set, to a rotated log file.
func newLogger(lc config.LogConfig, file string, stderr io.Writer) (*slog.Logger, io.Closer) {
	var w io.Writer = stderr
	var closer io.Closer
	if file != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAge:     28,
			Compress:   true,
		}
		w = io.MultiWriter(stderr, rotator)
		closer = rotator
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(lc.Level)})), closer
}

func (a *app) loadRules() (*rules.Set, error) {
	rs, err := rules.LoadDir(a.cfg.Path(a.cfg.Paths.Rules))
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Loaded rules", "count", len(rs), "dir", a.cfg.Paths.Rules)
	return rules.NewSet(rs), nil
}

// mode returns the override when set, else the configured mode.
func (a *app) mode(override string) (arbiter.Mode, error) {
	if override == "" {
		return a.cfg.ArbiterMode(), nil
	}
	return arbiter.ParseMode(override)
}

// language returns the override when set, else the configured language.
func (a *app) language(override string) string {
	if override != "" {
		return override
	}
	return a.cfg.Model.Language
}

// history opens the evaluation history store on first use. It returns nil
// when history is disabled.
func (a *app) history() (*storage.Store, error) {
	if a.store != nil || !a.cfg.HistoryEnabled() {
		return a.store, nil
	}
	dsn := a.cfg.HistoryDSN()
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	s, err := storage.Open(dsn, a.logger)
	if err != nil {
		return nil, err
	}
	a.store = s
	a.closers = append(a.closers, s.Close)
	return s, nil
}

// verdictPublisher connects to NATS on first use. It returns nil when no
// URL is configured.
func (a *app) verdictPublisher() (*export.Publisher, error) {
	if a.publisher != nil || a.cfg.NATS.URL == "" {
		return a.publisher, nil
	}
	p, err := export.Connect(a.cfg.NATS.URL, a.logger)
	if err != nil {
		return nil, err
	}
	a.publisher = p
	a.closers = append(a.closers, p.Close)
	return p, nil
}

// buildArbiter wires the judge for modes that need one: the registry and
// LLM client from config, call recording into metrics and history, and the
// batch rate limit.
func (a *app) buildArbiter(mode arbiter.Mode, lang string) (arbiter.Arbiter, error) {
	if !mode.NeedsJudge() {
		return arbiter.New(mode, nil)
	}

	registry, err := a.cfg.BuildRegistry()
	if err != nil {
		return nil, err
	}

	recorders := llm.MultiRecorder{metrics.Recorder{}}
	store, err := a.history()
	if err != nil {
		return nil, err
	}
	if store != nil {
		recorders = append(recorders, store)
	}

	client := llm.NewClient(registry,
		llm.WithTimeout(a.cfg.Model.Timeout),
		llm.WithRetryConfig(llm.RetryConfigFor(a.cfg.RetriesValue())),
		llm.WithLogger(a.logger),
		llm.WithRecorder(recorders),
	)
	judge := evaluator.RateLimited(
		arbiter.NewLLMJudge(client,
			arbiter.WithTemperature(a.cfg.TemperatureValue()),
			arbiter.WithMaxTokens(a.cfg.Model.MaxTokens)),
		evaluator.NewLimiter(a.cfg.Batch.RatePerSecond),
	)

	return arbiter.New(mode, judge,
		arbiter.WithLanguage(lang),
		arbiter.WithLogger(a.logger))
}

func (a *app) renderer() report.Renderer {
	return report.Renderer{Dir: a.cfg.Path(a.cfg.Paths.Templates)}
}

type evalOptions struct {
	mode       string
	lang       string
	withReport bool
}

// newEvaluator assembles the evaluation pipeline with every configured sink.
func (a *app) newEvaluator(o evalOptions) (*evaluator.Evaluator, error) {
	set, err := a.loadRules()
	if err != nil {
		return nil, err
	}
	mode, err := a.mode(o.mode)
	if err != nil {
		return nil, err
	}
	lang := a.language(o.lang)

	arb, err := a.buildArbiter(mode, lang)
	if err != nil {
		return nil, err
	}

	opts := []evaluator.Option{
		evaluator.WithLogger(a.logger),
		evaluator.WithObserver(metrics.ObserveOutcome),
	}
	if o.withReport {
		opts = append(opts, evaluator.WithReports(a.renderer(), lang))
	}
	store, err := a.history()
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, evaluator.WithHistory(store))
	}
	pub, err := a.verdictPublisher()
	if err != nil {
		return nil, err
	}
	if pub != nil {
		opts = append(opts, evaluator.WithPublisher(pub))
	}

	return evaluator.New(arb, mode, set, a.cfg.Path(a.cfg.Paths.Reports), opts...), nil
}
