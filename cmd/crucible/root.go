package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func rootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Redline-first startup idea evaluator",
		Long: `Crucible checks a startup idea against human-authored redline rules.

Each evaluation produces a verdict (deny, caution or go) with a confidence,
reasons, the redline ids that fired and next steps. Verdicts come from a
keyword heuristic, an LLM judge whose output is validated and repaired
against the rule set, or both merged conservatively.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.finish()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&a.flags.logFile, "log-file", "", "Also write logs to this file, with rotation")
	cmd.PersistentFlags().StringVar(&a.flags.metricsOut, "metrics-out", "", "Write Prometheus metrics to this textfile on exit")

	cmd.AddCommand(
		intakeCmd(a),
		evaluateCmd(a),
		reportCmd(a),
		batchCmd(a),
		benchCmd(a),
		syncCmd(a),
		rulesCmd(a),
		watchCmd(a),
		historyCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			// Skip config loading for version.
			PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
			PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}
