package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fpmatch/internal/stage"
	"fpmatch/internal/workflow"
)

type runOptions struct {
	input        string
	csv          string
	discover     bool
	anchorPolicy string
	encoding     string
	trace        string
	analysis     bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Resolve an event file into identities and store the results",
		Long: `Resolve every event of the input file, in timestamp order, against the
identities seen so far. Assignments are stored in the results database and
optionally exported as CSV (.gz and .zst suffixes compress the export).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyPath(&cfg.Input.Path, opts.input); err != nil {
				return err
			}
			if err := applyPath(&cfg.Output.CSVPath, opts.csv); err != nil {
				return err
			}
			if opts.discover {
				cfg.Features.Discover = true
			}
			if v := strings.TrimSpace(opts.anchorPolicy); v != "" {
				cfg.Engine.AnchorPolicy = strings.ToLower(v)
			}
			if v := strings.TrimSpace(opts.encoding); v != "" {
				cfg.Engine.Encoding = strings.ToLower(v)
			}
			if v := strings.TrimSpace(opts.trace); v != "" {
				cfg.Engine.TraceAnchorValue = v
			}
			if opts.analysis {
				cfg.Analysis.Enabled = true
			}
			if err := cfg.Validate(); err != nil {
				return stage.Wrap(stage.ErrConfiguration, "cli", "flags", "invalid run options", err)
			}
			if strings.TrimSpace(cfg.Input.Path) == "" {
				return stage.Wrap(stage.ErrConfiguration, "cli", "input", "no input file; pass --input or set input.path", nil)
			}

			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			report, err := workflow.New(cfg, logger).Run(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, report)
			}
			printRunReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Event file to resolve (overrides input.path)")
	cmd.Flags().StringVar(&opts.csv, "csv", "", "Also export results to this CSV file")
	cmd.Flags().BoolVar(&opts.discover, "discover", false, "Derive feature roles from column name prefixes")
	cmd.Flags().StringVar(&opts.anchorPolicy, "anchor-policy", "", "Anchor update policy (drift or pinned)")
	cmd.Flags().StringVar(&opts.encoding, "encoding", "", "Feature encoding mode (batch or lazy)")
	cmd.Flags().StringVar(&opts.trace, "trace", "", "Log every matching step for events with this anchor value")
	cmd.Flags().BoolVar(&opts.analysis, "analysis", false, "Profile feature columns before resolving")
	return cmd
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var input string
	var discover bool
	var topValues int

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report per-feature characteristics of an event file without resolving it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyPath(&cfg.Input.Path, input); err != nil {
				return err
			}
			if discover {
				cfg.Features.Discover = true
			}
			if topValues > 0 {
				cfg.Analysis.TopValues = topValues
			}
			if strings.TrimSpace(cfg.Input.Path) == "" {
				return stage.Wrap(stage.ErrConfiguration, "cli", "input", "no input file; pass --input or set input.path", nil)
			}

			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			report, err := workflow.New(cfg, logger).Analyze(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, report.Profile)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Input: %s\n", report.InputPath)
			printRoles(out, report)
			if report.Profile != nil {
				printProfile(out, *report.Profile)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Event file to analyze (overrides input.path)")
	cmd.Flags().BoolVar(&discover, "discover", false, "Derive feature roles from column name prefixes")
	cmd.Flags().IntVar(&topValues, "top", 0, "Number of most frequent values used for coverage")
	return cmd
}
