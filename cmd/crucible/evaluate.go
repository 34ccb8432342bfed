package main

import (
	"fmt"
	"path/filepath"

	"github.com/c360studio/crucible/evaluator"
	"github.com/c360studio/crucible/idea"
	"github.com/c360studio/crucible/verdict"
	"github.com/spf13/cobra"
)

func evaluateCmd(a *app) *cobra.Command {
	var (
		ideaPath string
		o        evalOptions
	)

	cmd := &cobra.Command{
		Use:   "evaluate [idea.yaml]",
		Short: "Evaluate an idea against the redline rules",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				ideaPath = args[0]
			}
			if ideaPath == "" {
				return fmt.Errorf("an idea file is required (--idea or argument)")
			}

			ev, err := a.newEvaluator(o)
			if err != nil {
				return err
			}
			res, err := ev.EvaluateFile(cmd.Context(), ideaPath)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), res.VerdictPath)
			if res.ReportPath != "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.ReportPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ideaPath, "idea", "", "Path to idea YAML")
	cmd.Flags().StringVar(&o.mode, "mode", "", "Arbiter mode (heuristic, llm, hybrid)")
	cmd.Flags().StringVar(&o.lang, "lang", "", "Language for the judge and report, e.g. en or zh-CN")
	cmd.Flags().BoolVar(&o.withReport, "report", false, "Also render the markdown report")

	return cmd
}

func reportCmd(a *app) *cobra.Command {
	var (
		ideaPath string
		lang     string
	)

	cmd := &cobra.Command{
		Use:   "report [idea.yaml]",
		Short: "Render the one-page report from an idea and its stored verdict",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				ideaPath = args[0]
			}
			if ideaPath == "" {
				return fmt.Errorf("an idea file is required (--idea or argument)")
			}

			i, err := idea.Load(ideaPath)
			if err != nil {
				return err
			}
			reports := a.cfg.Path(a.cfg.Paths.Reports)
			slug := evaluator.SlugFor(ideaPath)
			v, err := verdict.ReadFile(verdict.PathFor(reports, slug))
			if err != nil {
				return fmt.Errorf("no verdict for %s, run evaluate first: %w", slug, err)
			}

			out := filepath.Join(reports, slug+".md")
			if err := a.renderer().WriteFile(out, i, v, a.language(lang)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&ideaPath, "idea", "", "Path to idea YAML")
	cmd.Flags().StringVar(&lang, "lang", "", "Report language, e.g. en or zh-CN")

	return cmd
}

func intakeCmd(a *app) *cobra.Command {
	var (
		desc   string
		input  string
		out    string
		intake idea.IntakeOptions
	)

	cmd := &cobra.Command{
		Use:   "intake",
		Short: "Write a normalized idea YAML from a description or an existing file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				i    idea.Idea
				slug string
			)
			if input != "" {
				loaded, err := idea.Load(input)
				if err != nil {
					return err
				}
				i = loaded
				slug = idea.Slugify(i.Intent)
			} else {
				i = idea.FromDescription(desc, intake)
				slug = idea.Slugify(i.Intent)
			}
			if out != "" {
				slug = out
			}

			name := slug
			if filepath.Ext(name) != ".yaml" {
				name += ".yaml"
			}
			path := filepath.Join(a.cfg.Path(a.cfg.Paths.Ideas), name)
			if err := idea.Save(path, i); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&desc, "desc", "", "Short description of the idea")
	cmd.Flags().StringVar(&input, "input", "", "Existing idea YAML to normalize")
	cmd.Flags().StringVar(&intake.User, "user", "", "Target user")
	cmd.Flags().StringVar(&intake.Scenario, "scenario", "", "Usage scenario")
	cmd.Flags().StringVar(&intake.Triggers, "triggers", "", "What triggers the need")
	cmd.Flags().StringVar(&intake.Alts, "alts", "", "Current alternatives")
	cmd.Flags().StringSliceVar(&intake.Assumptions, "assumptions", nil, "Key assumptions")
	cmd.Flags().StringSliceVar(&intake.Risks, "risks", nil, "Known risks")
	cmd.Flags().StringVar(&out, "out", "", "Output file name under the ideas directory")

	return cmd
}
