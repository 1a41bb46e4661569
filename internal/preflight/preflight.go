package preflight

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"fpmatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckInputFile("Input file", cfg.Input.Path))
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDirectoryAccess("Results directory", filepath.Dir(cfg.Output.ResultsDB)))
	results = append(results, CheckResultsLock(cfg.Output.ResultsDB))

	if cfg.Output.CSVPath != "" {
		results = append(results, CheckDirectoryAccess("CSV output directory", filepath.Dir(cfg.Output.CSVPath)))
	}
	if cfg.Metrics.Textfile != "" {
		results = append(results, CheckDirectoryAccess("Metrics directory", filepath.Dir(cfg.Metrics.Textfile)))
	}

	if err := ctx.Err(); err != nil {
		results = append(results, Result{Name: "Context", Detail: err.Error()})
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// Err folds failed results into one error, or nil when everything passed.
func Err(results []Result) error {
	failed := Failed(results)
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, r.Name+": "+r.Detail)
	}
	return errors.New(strings.Join(parts, "; "))
}
