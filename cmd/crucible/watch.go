package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/c360studio/crucible/evaluator"
	"github.com/c360studio/crucible/watch"
	"github.com/spf13/cobra"
)

func watchCmd(a *app) *cobra.Command {
	var o evalOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-evaluate ideas whenever their files change",
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := a.newEvaluator(o)
			if err != nil {
				return err
			}

			dir := a.cfg.Path(a.cfg.Paths.Ideas)
			w, err := watch.New(a.cfg.Watch, dir, a.logger)
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", dir)
			return a.runWatch(ctx, ev, w.Events(), func(res *evaluator.Result) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s)\n", res.IdeaPath, res.VerdictPath, res.Outcome.Verdict.Decision)
			})
		},
	}

	cmd.Flags().StringVar(&o.mode, "mode", "", "Arbiter mode (heuristic, llm, hybrid)")
	cmd.Flags().StringVar(&o.lang, "lang", "", "Language for the judge and reports")
	cmd.Flags().BoolVar(&o.withReport, "report", false, "Also render a markdown report per idea")

	return cmd
}

// runWatch evaluates each created or modified idea until ctx ends or the
// event channel closes. Ideas that fail to load are logged and skipped.
func (a *app) runWatch(ctx context.Context, ev *evaluator.Evaluator, events <-chan watch.Event, done func(*evaluator.Result)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if event.Op == watch.OpDelete {
				a.logger.Info("Idea removed", "path", event.Path)
				continue
			}
			res, err := ev.EvaluateFile(ctx, event.AbsPath)
			if err != nil {
				if evaluator.IsLoadError(err) {
					a.logger.Warn("Skipping idea", "path", event.Path, "error", err)
					continue
				}
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			done(res)
		}
	}
}
