package main

import (
	"encoding/json"
	"fmt"

	"github.com/c360studio/crucible/bench"
	"github.com/c360studio/crucible/idea"
	"github.com/c360studio/crucible/verdict"
	"github.com/spf13/cobra"
)

func benchCmd(a *app) *cobra.Command {
	var (
		dataset     string
		verdictsDir string
		outPath     string
		mode        string
		lang        string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Score verdicts against a labeled JSONL dataset",
		Long: `Score verdicts against a labeled JSONL dataset.

Each dataset line is {"id", "idea_path", "gold_decision", "gold_redlines"}.
By default every idea is re-evaluated with the configured arbiter. With
--verdicts, stored <id>.verdict.json files are scored instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := bench.LoadDataset(dataset)
			if err != nil {
				return err
			}

			predict, err := a.predictor(verdictsDir, mode, lang)
			if err != nil {
				return err
			}

			scored := make([]bench.Scored, 0, len(items))
			for _, it := range items {
				v, err := predict(cmd, it)
				if err != nil {
					return fmt.Errorf("item %s: %w", it.ID, err)
				}
				scored = append(scored, bench.Scored{
					ID:           it.ID,
					Predicted:    v,
					GoldDecision: it.GoldDecision,
					GoldRedlines: it.GoldRedlines,
				})
			}

			summary := bench.Score(scored)
			if outPath != "" {
				if err := writeJSON(outPath, summary); err != nil {
					return err
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}

	cmd.Flags().StringVar(&dataset, "dataset", "", "Path to the JSONL dataset")
	cmd.Flags().StringVar(&verdictsDir, "verdicts", "", "Score stored verdicts from this directory instead of re-evaluating")
	cmd.Flags().StringVar(&outPath, "out", "", "Also write the summary JSON here")
	cmd.Flags().StringVar(&mode, "mode", "", "Arbiter mode (heuristic, llm, hybrid)")
	cmd.Flags().StringVar(&lang, "lang", "", "Language hint for the judge")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

type predictFunc func(cmd *cobra.Command, it bench.Item) (verdict.Verdict, error)

// predictor returns how bench obtains a verdict for each dataset item.
func (a *app) predictor(verdictsDir, modeFlag, lang string) (predictFunc, error) {
	if verdictsDir != "" {
		return func(_ *cobra.Command, it bench.Item) (verdict.Verdict, error) {
			return verdict.ReadFile(verdict.PathFor(verdictsDir, it.ID))
		}, nil
	}

	set, err := a.loadRules()
	if err != nil {
		return nil, err
	}
	mode, err := a.mode(modeFlag)
	if err != nil {
		return nil, err
	}
	arb, err := a.buildArbiter(mode, a.language(lang))
	if err != nil {
		return nil, err
	}
	return func(cmd *cobra.Command, it bench.Item) (verdict.Verdict, error) {
		i, err := idea.Load(it.IdeaPath)
		if err != nil {
			return verdict.Verdict{}, err
		}
		out, err := arb.Decide(cmd.Context(), i, set)
		if err != nil {
			return verdict.Verdict{}, err
		}
		return out.Verdict, nil
	}, nil
}
