package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fpmatch/internal/config"
	"fpmatch/internal/preflight"
	"fpmatch/internal/results"
	"fpmatch/internal/stage"
	"fpmatch/internal/workflow"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the configured run is ready to start",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checks := preflight.RunAll(cmd.Context(), cfg)
			stages := workflow.New(cfg, nil).Health(cmd.Context())
			if ctx.JSONMode() {
				return writeJSON(cmd, statusPayload{Checks: checks, Stages: stages})
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, configPathLine(ctx.configPath, colorize))
			fmt.Fprintln(out, rolesStatusLine(cfg, colorize))
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Readiness", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range checkLines(checks, colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Stages", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range stageLines(stages, colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Results", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, latestRunLine(cmd, cfg, colorize))
			return nil
		},
	}
}

type statusPayload struct {
	Checks []preflight.Result `json:"checks"`
	Stages []stage.Health     `json:"stages"`
}

func configPathLine(path string, colorize bool) string {
	if path == "" {
		return renderStatusLine("Config file", statusInfo, "defaults", colorize)
	}
	if _, err := os.Stat(path); err != nil {
		return renderStatusLine("Config file", statusWarn, path+" (not found, defaults used)", colorize)
	}
	return renderStatusLine("Config file", statusOK, path, colorize)
}

func rolesStatusLine(cfg *config.Config, colorize bool) string {
	switch {
	case cfg.Features.Discover:
		return renderStatusLine("Feature roles", statusOK, "discovered from column prefixes", colorize)
	case cfg.Features.Anchor != "":
		msg := fmt.Sprintf("anchor %s, %d reducers, %d identifiers",
			cfg.Features.Anchor, len(cfg.Features.Reducers), len(cfg.Features.Identifiers))
		kind := statusOK
		if len(cfg.Features.Reducers) == 0 {
			kind = statusWarn
		}
		return renderStatusLine("Feature roles", kind, msg, colorize)
	default:
		return renderStatusLine("Feature roles", statusWarn, "not configured; prefixes will be used", colorize)
	}
}

// checkLines renders preflight results followed by a summary line.
func checkLines(checks []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(checks)+1)
	for _, c := range checks {
		kind := statusOK
		if !c.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(c.Name, kind, c.Detail, colorize))
	}
	failed := preflight.Failed(checks)
	if len(failed) == 0 {
		lines = append(lines, renderStatusLine("Summary", statusOK, "ready to run", colorize))
	} else {
		lines = append(lines, renderStatusLine("Summary", statusError, fmt.Sprintf("%d of %d checks failed", len(failed), len(checks)), colorize))
	}
	return lines
}

// stageLines renders the readiness each checked pipeline stage reports.
func stageLines(healths []stage.Health, colorize bool) []string {
	lines := make([]string, 0, len(healths))
	for _, h := range healths {
		kind, detail := statusOK, h.Detail
		switch {
		case !h.Ready:
			kind = statusError
		case detail != "":
			kind = statusWarn
		default:
			detail = "ready"
		}
		lines = append(lines, renderStatusLine(h.Stage, kind, detail, colorize))
	}
	return lines
}

func latestRunLine(cmd *cobra.Command, cfg *config.Config, colorize bool) string {
	if _, err := os.Stat(cfg.Output.ResultsDB); errors.Is(err, os.ErrNotExist) {
		return renderStatusLine("Latest run", statusInfo, "none recorded", colorize)
	}
	store, err := results.Open(cmd.Context(), cfg.Output.ResultsDB, false)
	if err != nil {
		return renderStatusLine("Latest run", statusError, err.Error(), colorize)
	}
	defer store.Close()
	run, err := store.GetRun(cmd.Context(), "")
	if err != nil {
		if errors.Is(err, results.ErrRunNotFound) {
			return renderStatusLine("Latest run", statusInfo, "none recorded", colorize)
		}
		return renderStatusLine("Latest run", statusError, err.Error(), colorize)
	}
	return renderStatusLine("Latest run", runStatusKind(run.Status), describeRun(run), colorize)
}

func runStatusKind(status results.Status) statusKind {
	switch status {
	case results.StatusCompleted:
		return statusOK
	case results.StatusFailed:
		return statusError
	default:
		return statusWarn
	}
}

func describeRun(run *results.Run) string {
	return fmt.Sprintf("%s %s, %s events, %s identities, started %s",
		run.ID, run.Status, formatCount(run.TotalRows), formatCount(run.UniqueIdentities), formatTime(run.StartedAt))
}
