package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func historyCmd(a *app) *cobra.Command {
	var (
		limit     int
		showCalls bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "history [slug]",
		Short: "List past evaluations from the history store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.history()
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("history is disabled (storage.dsn is off)")
			}

			var slug string
			if len(args) == 1 {
				slug = args[0]
			}
			evals, err := store.ListEvaluations(cmd.Context(), slug, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(evals)
			}
			if len(evals) == 0 {
				fmt.Fprintln(out, "No evaluations recorded")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tSLUG\tMODE\tSTATE\tDECISION\tCONF\tREDLINES\tCALLS")
			for _, e := range evals {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\t%s\t%d\n",
					e.CreatedAt.Local().Format(time.DateTime),
					e.Slug, e.Mode, e.State,
					e.Verdict.Decision, e.Verdict.ConfLevel,
					strings.Join(e.Verdict.Redlines, ","),
					e.JudgeCalls)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if !showCalls {
				return nil
			}
			for _, e := range evals {
				calls, err := store.ListCalls(cmd.Context(), e.ID)
				if err != nil {
					return err
				}
				if len(calls) == 0 {
					continue
				}
				fmt.Fprintf(out, "\n%s (%s)\n", e.Slug, e.ID)
				for _, c := range calls {
					status := "ok"
					if c.Error != "" {
						status = c.Error
					}
					fmt.Fprintf(out, "  %-7s %s/%s tokens=%d retries=%d %dms %s\n",
						c.Pass, c.Provider, c.Model, c.TotalTokens, c.Retries, c.DurationMs, status)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum evaluations to list (0 for all)")
	cmd.Flags().BoolVar(&showCalls, "calls", false, "Also list the judge calls of each evaluation")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}
