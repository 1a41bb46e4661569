package main

import (
	"fmt"
	"io"
	"strings"

	"fpmatch/internal/datasetstats"
	"fpmatch/internal/identity"
	"fpmatch/internal/results"
	"fpmatch/internal/workflow"
)

func printRunReport(out io.Writer, report *workflow.Report) {
	fmt.Fprintf(out, "Run %s\n", report.RunID)
	fmt.Fprintf(out, "Input: %s (%s rows", report.InputPath, formatCount(report.Rows))
	if !report.Sorted {
		fmt.Fprint(out, ", file order")
	}
	fmt.Fprintln(out, ")")
	printRoles(out, report)
	printSummary(out, report.Summary)
	if report.Profile != nil {
		printProfile(out, *report.Profile)
	}
	printIndexAnalysis(out, report.Analysis)
	printTimings(out, report)
	fmt.Fprintf(out, "Results database: %s\n", report.ResultsDB)
	if report.CSVPath != "" {
		fmt.Fprintf(out, "CSV export: %s\n", report.CSVPath)
	}
}

func printRoles(out io.Writer, report *workflow.Report) {
	roles := report.Roles
	if roles.Anchor == "" {
		return
	}
	fmt.Fprintf(out, "Anchor: %s\n", roles.Anchor)
	fmt.Fprintf(out, "Reducers: %s\n", joinOrNone(roles.Reducers))
	fmt.Fprintf(out, "Identifiers: %s\n", joinOrNone(roles.Identifiers))
}

func printSummary(out io.Writer, summary results.Summary) {
	printTable(out, tableSpec{
		Title:   "Summary",
		Headers: []string{"Metric", "Value"},
		Aligns:  []columnAlignment{alignLeft, alignRight},
		Rows: [][]string{
			{"Events", formatCount(summary.TotalRows)},
			{"New identities", formatCount(summary.NewIdentities)},
			{"Matched events", formatCount(summary.MatchedRows)},
			{"Unique identities", formatCount(summary.UniqueIdentities)},
			{"Match rate", formatPercent(summary.MatchRate)},
		},
	})
	if len(summary.ByFeature) == 0 {
		return
	}
	rows := make([][]string, 0, len(summary.ByFeature))
	for _, fc := range summary.ByFeature {
		rows = append(rows, []string{fc.Feature, formatCount(fc.Count), formatPercent(fc.Share)})
	}
	printTable(out, tableSpec{
		Title:   "Matches by feature",
		Headers: []string{"Feature", "Events", "Share"},
		Aligns:  []columnAlignment{alignLeft, alignRight, alignRight},
		Rows:    rows,
		Footer:  []string{"Total", formatCount(summary.TotalRows), ""},
	})
}

func printProfile(out io.Writer, report datasetstats.Report) {
	rows := make([][]string, 0, len(report.Features))
	for _, fs := range report.Features {
		rows = append(rows, []string{
			fs.Feature,
			formatCount(fs.UniqueValues),
			formatCount(fs.TotalValues),
			formatRatio(fs.Selectivity),
			formatPercent(fs.NullRatio),
			formatPercent(fs.TopCoverage),
			string(fs.Recommendation),
		})
	}
	printTable(out, tableSpec{
		Title:   fmt.Sprintf("Dataset characteristics (%s rows, top %d values)", formatCount(report.Rows), report.TopValues),
		Headers: []string{"Feature", "Unique", "Values", "Selectivity", "Null", "Top coverage", "Recommendation"},
		Aligns: []columnAlignment{
			alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft,
		},
		Rows: rows,
	})
	if len(report.Empty) > 0 {
		fmt.Fprintf(out, "Features without values: %s\n", strings.Join(report.Empty, ", "))
	}
	if high := report.ByRecommendation(datasetstats.HighDiscriminative); len(high) > 0 {
		fmt.Fprintf(out, "Highly discriminative: %s\n", strings.Join(high, ", "))
	}
}

func printIndexAnalysis(out io.Writer, analysis identity.Analysis) {
	if analysis.TotalIdentities == 0 {
		return
	}
	sizes := analysis.SignatureSizes
	fmt.Fprintf(out, "Signature sizes: min %d, max %d, mean %.2f\n", sizes.Min, sizes.Max, sizes.Mean)
	rows := make([][]string, 0, len(analysis.Features))
	for _, fu := range analysis.Features {
		rows = append(rows, []string{
			fu.Feature,
			formatCount(fu.UniqueValues),
			formatCount(fu.Associations),
			fmt.Sprintf("%.2f", fu.AvgIdentitiesPerValue),
			formatCount(fu.Distinctive),
		})
	}
	printTable(out, tableSpec{
		Title:   fmt.Sprintf("Index (%s identities)", formatCount(analysis.TotalIdentities)),
		Headers: []string{"Feature", "Values", "Associations", "Identities/value", "Distinctive"},
		Aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
		Rows:    rows,
	})
}

func printTimings(out io.Writer, report *workflow.Report) {
	if len(report.Timings) == 0 {
		return
	}
	rows := make([][]string, 0, len(report.Timings))
	for _, t := range report.Timings {
		rows = append(rows, []string{t.Stage, formatDuration(t.Duration)})
	}
	printTable(out, tableSpec{
		Title:   "Stages",
		Headers: []string{"Stage", "Duration"},
		Aligns:  []columnAlignment{alignLeft, alignRight},
		Rows:    rows,
		Footer:  []string{"Total", formatDuration(report.Duration)},
	})
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}
