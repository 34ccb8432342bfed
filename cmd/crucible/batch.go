package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/c360studio/crucible/bench"
	"github.com/c360studio/crucible/evaluator"
	"github.com/c360studio/crucible/export"
	"github.com/c360studio/crucible/verdict"
	"github.com/spf13/cobra"
)

// statsFile is written under the reports directory by batch --stats.
const statsFile = "_stats.json"

func batchCmd(a *app) *cobra.Command {
	var (
		ideasDir    string
		pattern     string
		concurrency int
		stats       bool
		format      string
		outPath     string
		o           evalOptions
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Evaluate every idea under the ideas directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ideasDir == "" {
				ideasDir = a.cfg.Path(a.cfg.Paths.Ideas)
			}
			if pattern == "" {
				pattern = a.cfg.Batch.Pattern
			}
			if concurrency == 0 {
				concurrency = a.cfg.Batch.Concurrency
			}

			paths, err := evaluator.FindIdeas(ideasDir, pattern)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No ideas matched under %s with pattern %s\n", ideasDir, pattern)
				return nil
			}

			ev, err := a.newEvaluator(o)
			if err != nil {
				return err
			}
			results, err := ev.EvaluateAll(cmd.Context(), paths, concurrency)
			if err != nil {
				return err
			}

			var (
				verdicts []verdict.Verdict
				records  []export.Record
			)
			for n, res := range results {
				if res.Err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] skipped %s: %v\n", n+1, len(results), res.IdeaPath, res.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] -> %s\n", n+1, len(results), res.VerdictPath)
				verdicts = append(verdicts, res.Outcome.Verdict)
				records = append(records, export.Record{
					Slug:     res.Slug,
					IdeaPath: res.IdeaPath,
					Mode:     string(res.Outcome.Mode),
					Verdict:  res.Outcome.Verdict,
				})
			}

			if stats {
				path := filepath.Join(a.cfg.Path(a.cfg.Paths.Reports), statsFile)
				if err := writeJSON(path, bench.Stats(verdicts)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stats written -> %s\n", path)
			}

			if format != "" {
				if outPath == "" {
					info, ok := export.GetFormatInfo(export.Format(format))
					if !ok {
						return fmt.Errorf("unsupported export format %q", format)
					}
					outPath = filepath.Join(a.cfg.Path(a.cfg.Paths.Reports), "_batch"+info.Extension)
				}
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				if err := export.WriteRecords(f, export.Format(format), records); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Export written -> %s\n", outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ideasDir, "ideas-dir", "", "Ideas directory (default from config)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Glob pattern under ideas-dir, ** allowed")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Ideas evaluated in parallel (default from config)")
	cmd.Flags().BoolVar(&stats, "stats", false, "Write decision and redline stats to reports/"+statsFile)
	cmd.Flags().StringVar(&format, "export", "", "Also export all verdicts (jsonl, csv)")
	cmd.Flags().StringVar(&outPath, "out", "", "Export file path")
	cmd.Flags().StringVar(&o.mode, "mode", "", "Arbiter mode (heuristic, llm, hybrid)")
	cmd.Flags().StringVar(&o.lang, "lang", "", "Language for the judge and reports")
	cmd.Flags().BoolVar(&o.withReport, "report", false, "Also render a markdown report per idea")

	return cmd
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
