package main

import (
	"fmt"

	"github.com/c360studio/crucible/export"
	"github.com/spf13/cobra"
)

func syncCmd(a *app) *cobra.Command {
	var (
		src         string
		dst         string
		pattern     string
		noOverwrite bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy verdict files from the reports directory into a dataset directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if src == "" {
				src = a.cfg.Path(a.cfg.Paths.Reports)
			}
			n, err := export.SyncDir(src, dst, pattern, !noOverwrite)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Copied %d verdicts -> %s\n", n, dst)
			return nil
		},
	}

	cmd.Flags().StringVar(&src, "src", "", "Source reports directory (default from config)")
	cmd.Flags().StringVar(&dst, "dst", "", "Dataset verdicts directory")
	cmd.Flags().StringVar(&pattern, "pattern", export.DefaultPattern, "Glob pattern under src, ** allowed")
	cmd.Flags().BoolVar(&noOverwrite, "no-overwrite", false, "Keep files that already exist in dst")
	_ = cmd.MarkFlagRequired("dst")

	return cmd
}
