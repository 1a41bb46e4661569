package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"fpmatch/internal/results"
	"fpmatch/internal/stage"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	resultsCmd := &cobra.Command{
		Use:   "results",
		Short: "Inspect and maintain stored runs",
	}
	resultsCmd.AddCommand(newResultsRunsCommand(ctx))
	resultsCmd.AddCommand(newResultsSummaryCommand(ctx))
	resultsCmd.AddCommand(newResultsCollisionsCommand(ctx))
	resultsCmd.AddCommand(newResultsPruneCommand(ctx))
	resultsCmd.AddCommand(newResultsDeleteCommand(ctx))
	resultsCmd.AddCommand(newResultsHealthCommand(ctx))
	return resultsCmd
}

// withStore opens the results database. Read-only commands share the file;
// maintenance commands take the run lock.
func (c *commandContext) withStore(cmdCtx context.Context, exclusive bool, fn func(*results.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if !exclusive {
		if _, err := os.Stat(cfg.Output.ResultsDB); errors.Is(err, os.ErrNotExist) {
			return stage.Wrap(stage.ErrPersistence, "cli", "results", fmt.Sprintf("no results database at %s; run `fpmatch run` first", cfg.Output.ResultsDB), nil)
		}
	}
	store, err := results.Open(cmdCtx, cfg.Output.ResultsDB, exclusive)
	if err != nil {
		return stage.Wrap(stage.ErrPersistence, "cli", "results", "cannot open results database", err)
	}
	defer store.Close()
	return fn(store)
}

func runIDArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.TrimSpace(args[0])
}

func newResultsRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), false, func(store *results.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						run.ID,
						string(run.Status),
						formatTime(run.StartedAt),
						formatCount(run.TotalRows),
						formatCount(run.UniqueIdentities),
						formatDuration(run.Duration()),
						run.InputPath,
					})
				}
				printTable(out, tableSpec{
					Headers: []string{"Run", "Status", "Started", "Events", "Identities", "Duration", "Input"},
					Aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
					Rows:    rows,
				})
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}

func newResultsSummaryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "summary [run-id]",
		Short: "Show the match summary of a run (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), false, func(store *results.Store) error {
				run, err := store.GetRun(cmd.Context(), runIDArg(args))
				if err != nil {
					return err
				}
				summary, err := store.Summary(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, struct {
						Run     *results.Run
						Summary results.Summary
					}{run, summary})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.Status)
				fmt.Fprintf(out, "Input: %s\n", run.InputPath)
				fmt.Fprintf(out, "Started: %s\n", formatTime(run.StartedAt))
				fmt.Fprintf(out, "Anchor: %s (policy %s)\n", run.Anchor, run.AnchorPolicy)
				fmt.Fprintf(out, "Reducers: %s\n", joinOrNone(run.Reducers))
				fmt.Fprintf(out, "Identifiers: %s\n", joinOrNone(run.Identifiers))
				if run.ErrorMessage != "" {
					fmt.Fprintf(out, "Error: %s\n", run.ErrorMessage)
				}
				printSummary(out, summary)
				return nil
			})
		},
	}
}

func newResultsCollisionsCommand(ctx *commandContext) *cobra.Command {
	var column string
	var limit int
	cmd := &cobra.Command{
		Use:   "collisions [run-id]",
		Short: "List identities that absorbed events with different passthrough values",
		Long: `List identities whose events carry more than one distinct value of a
passthrough column, such as a known device id. Each row is a likely false
merge.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), false, func(store *results.Store) error {
				run, err := store.GetRun(cmd.Context(), runIDArg(args))
				if err != nil {
					return err
				}
				key := strings.TrimSpace(column)
				if key == "" {
					if len(run.Passthrough) == 0 {
						return stage.Wrap(stage.ErrValidation, "cli", "collisions", "run stored no passthrough columns; pass --key", nil)
					}
					key = run.Passthrough[0]
				}
				collisions, err := store.Collisions(cmd.Context(), run.ID, key, limit)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, collisions)
				}
				out := cmd.OutOrStdout()
				if len(collisions) == 0 {
					fmt.Fprintf(out, "No identity spans more than one %s value\n", key)
					return nil
				}
				rows := make([][]string, 0, len(collisions))
				for _, c := range collisions {
					rows = append(rows, []string{
						c.IdentityKey,
						formatCount(c.DistinctValues),
						formatCount(c.Events),
						strings.Join(c.Values, ", "),
					})
				}
				printTable(out, tableSpec{
					Title:   fmt.Sprintf("Collisions on %s (run %s)", key, run.ID),
					Headers: []string{"Identity", "Distinct", "Events", "Values"},
					Aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
					Rows:    rows,
				})
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&column, "key", "k", "", "Passthrough column to compare (defaults to the run's first)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of identities to list (0 for all)")
	return cmd
}

func newResultsPruneCommand(ctx *commandContext) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the most recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 0 {
				return stage.Wrap(stage.ErrValidation, "cli", "prune", "--keep must not be negative", nil)
			}
			return ctx.withStore(cmd.Context(), true, func(store *results.Store) error {
				removed, err := store.Prune(cmd.Context(), keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s runs\n", formatCount(removed))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 10, "Number of most recent runs to keep")
	return cmd
}

func newResultsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete one run and its assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := runIDArg(args)
			if id == "" {
				return stage.Wrap(stage.ErrValidation, "cli", "delete", "run id must not be blank", nil)
			}
			return ctx.withStore(cmd.Context(), true, func(store *results.Store) error {
				if err := store.DeleteRun(cmd.Context(), id); err != nil {
					if errors.Is(err, results.ErrRunNotFound) {
						return stage.Wrap(stage.ErrValidation, "cli", "delete", "unknown run id", err)
					}
					return stage.Wrap(stage.ErrPersistence, "cli", "delete", "cannot delete run", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", id)
				return nil
			})
		},
	}
}

func newResultsHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check results database health (schema, integrity, counts)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), false, func(store *results.Store) error {
				resp, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", resp.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(resp.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(resp.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %d\n", resp.SchemaVersion)
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(resp.IntegrityCheck))
				fmt.Fprintf(out, "Runs: %s\n", formatCount(resp.Runs))
				fmt.Fprintf(out, "Assignments: %s\n", formatCount(resp.Assignments))
				if resp.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", resp.Error)
				}
				return nil
			})
		},
	}
}
