package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/c360studio/crucible/rules"
	"github.com/spf13/cobra"
)

func rulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and author redline rules",
	}
	cmd.AddCommand(rulesLintCmd(a), rulesNewCmd(a))
	return cmd
}

func rulesLintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lint [dir]",
		Short: "Load every rule file and report problems",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.Path(a.cfg.Paths.Rules)
			if len(args) == 1 {
				dir = args[0]
			}
			rs, err := rules.LoadDir(dir)
			if err != nil {
				return err
			}
			set := rules.NewSet(rs)
			fmt.Fprintf(cmd.OutOrStdout(), "%d rules OK in %s\n", set.Len(), dir)
			for _, r := range set.Rules() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s  %-8s %-7s %s\n", r.ID, r.Severity, r.DecisionLabel(), r.Title)
			}
			return nil
		},
	}
}

func rulesNewCmd(a *app) *cobra.Command {
	var (
		title     string
		severity  string
		decision  string
		rationale string
		condition string
		keywords  []string
	)

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Scaffold the next RL-NNN rule file",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.Path(a.cfg.Paths.Rules)
			existing, err := rules.LoadDir(dir)
			if err != nil && !errors.Is(err, rules.ErrNoRules) && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			r := rules.Scaffold(rules.NextID(existing))
			if title != "" {
				r.Title = title
			}
			r.Severity = rules.Severity(strings.ToLower(severity))
			r.Decision = rules.Effect(strings.ToLower(decision))
			r.Rationale = rationale
			r.Condition = condition
			if len(keywords) > 0 {
				r.Keywords = keywords
			}
			if err := r.Validate(); err != nil {
				return err
			}

			path := filepath.Join(dir, rules.FileName(r.ID))
			if err := rules.WriteFile(path, r); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s -> %s\n", r.ID, path)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Rule title")
	cmd.Flags().StringVar(&severity, "severity", string(rules.SeverityMedium), "critical, high, medium or low")
	cmd.Flags().StringVar(&decision, "decision", string(rules.EffectCaution), "deny or caution")
	cmd.Flags().StringVar(&rationale, "rationale", "", "Why the redline exists")
	cmd.Flags().StringVar(&condition, "condition", "", "When the redline triggers")
	cmd.Flags().StringSliceVar(&keywords, "keywords", nil, "Comma-separated trigger keywords")
	_ = cmd.MarkFlagRequired("rationale")
	_ = cmd.MarkFlagRequired("condition")

	return cmd
}
