package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"fpmatch/internal/engine"
	"fpmatch/internal/identity"
	"fpmatch/internal/results"
	"fpmatch/internal/stage"
	"fpmatch/internal/testsupport"
	"fpmatch/internal/workflow"
)

func stableKey(id int) string {
	return engine.StableKeys(uuid.NameSpaceOID)(identity.ID(id))
}

func fixedRunID(id string) workflow.Option {
	return workflow.WithRunID(func() string { return id })
}

func TestRunResolvesDriftEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEvents(testsupport.DriftEvents...))
	runner := workflow.New(cfg, nil, fixedRunID("run-drift"))

	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Rows != 4 || !report.Sorted {
		t.Fatalf("unexpected batch shape rows=%d sorted=%v", report.Rows, report.Sorted)
	}
	sum := report.Summary
	if sum.TotalRows != 4 || sum.NewIdentities != 3 || sum.MatchedRows != 1 || sum.UniqueIdentities != 3 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.MatchRate != 0.25 {
		t.Fatalf("match rate = %v, want 0.25", sum.MatchRate)
	}
	if report.Analysis.TotalIdentities != 3 {
		t.Fatalf("analysis identities = %d", report.Analysis.TotalIdentities)
	}
	var stages []string
	for _, timing := range report.Timings {
		stages = append(stages, timing.Stage)
	}
	want := []string{"preflight", "roles", "open", "load", "profile", "encode", "resolve", "persist", "export"}
	if !slices.Equal(stages, want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
}

func TestRunPersistsAssignments(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEvents(testsupport.DriftEvents...))
	if _, err := workflow.New(cfg, nil, fixedRunID("run-persist")).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	store := testsupport.MustOpenResults(t, cfg)
	ctx := context.Background()
	run, err := store.GetRun(ctx, "")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.ID != "run-persist" || run.Status != results.StatusCompleted || run.TotalRows != 4 {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.Anchor != "anchor_android_id" || run.AnchorPolicy != "drift" {
		t.Fatalf("run roles not recorded: %+v", run)
	}

	var got []results.Assignment
	err = store.Assignments(ctx, "run-persist", func(a results.Assignment) error {
		got = append(got, a)
		return nil
	})
	if err != nil {
		t.Fatalf("Assignments: %v", err)
	}
	want := []struct {
		source  int
		key     string
		isNew   bool
		feature string
		device  string
	}{
		{1, stableKey(0), true, engine.NoMatch, "dev-1"},
		{3, stableKey(0), false, "matcher_serial", "dev-1"},
		{2, stableKey(1), true, engine.NoMatch, "dev-2"},
		{0, stableKey(2), true, engine.NoMatch, "dev-9"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d assignments, want %d", len(got), len(want))
	}
	for i, w := range want {
		a := got[i]
		if a.Seq != i || a.SourceRow != w.source || a.IdentityKey != w.key || a.IsNew != w.isNew || a.MatchedFeature != w.feature {
			t.Fatalf("assignment %d = %+v, want %+v", i, a, w)
		}
		if a.Passthrough["deviceId"] != w.device {
			t.Fatalf("assignment %d passthrough = %v", i, a.Passthrough)
		}
	}

	collisions, err := store.Collisions(ctx, "run-persist", "deviceId", 10)
	if err != nil {
		t.Fatalf("Collisions: %v", err)
	}
	if len(collisions) != 0 {
		t.Fatalf("expected no collisions, got %+v", collisions)
	}
}

func TestRunPinnedAnchor(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithEvents(testsupport.DriftEvents...),
		testsupport.WithAnchorPolicy("pinned"),
	)
	report, err := workflow.New(cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	sum := report.Summary
	if sum.NewIdentities != 2 || sum.MatchedRows != 2 {
		t.Fatalf("unexpected pinned summary %+v", sum)
	}
	counts := map[string]int{}
	for _, fc := range sum.ByFeature {
		counts[fc.Feature] = fc.Count
	}
	if counts["anchor_android_id"] != 1 || counts["matcher_serial"] != 1 {
		t.Fatalf("unexpected feature counts %v", counts)
	}
}

func TestRunExportsCSV(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithEvents(testsupport.DriftEvents...),
		testsupport.WithCSVOutput("results.csv"),
	)
	if _, err := workflow.New(cfg, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	records := testsupport.ReadCSV(t, cfg.Output.CSVPath)
	if len(records) != 5 {
		t.Fatalf("got %d records, want header plus 4 rows", len(records))
	}
	header := records[0]
	tail := header[len(header)-3:]
	if !slices.Equal(tail, []string{workflow.ColumnIdentity, workflow.ColumnIsNew, workflow.ColumnFeature}) {
		t.Fatalf("unexpected result columns %v", header)
	}
	ts := slices.Index(header, "timestamp")
	serial := slices.Index(header, "matcher_serial")
	if ts < 0 || serial < 0 {
		t.Fatalf("input columns missing from %v", header)
	}
	if records[1][ts] != "2024-01-01T00:00:00Z" || records[4][ts] != "2024-01-04T00:00:00Z" {
		t.Fatalf("rows not in timestamp order: %v", records[1:])
	}
	if records[3][serial] != "" {
		t.Fatalf("missing serial should export empty, got %q", records[3][serial])
	}
	row2 := records[2]
	if row2[len(row2)-2] != "false" || row2[len(row2)-1] != "matcher_serial" {
		t.Fatalf("unexpected second row %v", row2)
	}
	if records[1][len(header)-2] != "true" {
		t.Fatalf("first row should be new: %v", records[1])
	}
}

func TestRunCompressedOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithEvents(testsupport.DriftEvents...),
		testsupport.WithCSVOutput("results.csv.gz"),
	)
	if _, err := workflow.New(cfg, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(cfg.Output.CSVPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		t.Fatalf("export is not gzip compressed")
	}
}

func TestRunDiscoversRoles(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithEvents(testsupport.DriftEvents...),
		testsupport.WithDiscover(),
	)
	report, err := workflow.New(cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	roles := report.Roles
	if roles.Anchor != "anchor_android_id" {
		t.Fatalf("anchor = %q", roles.Anchor)
	}
	if !slices.Equal(roles.Reducers, []string{"reducer_sensor_hash"}) {
		t.Fatalf("reducers = %v", roles.Reducers)
	}
	if !slices.Equal(roles.Identifiers, []string{"matcher_serial", "matcher_fallback_ad_id"}) {
		t.Fatalf("identifiers = %v", roles.Identifiers)
	}
	if report.Summary.NewIdentities != 3 {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}
}

func TestEncodingModesAgree(t *testing.T) {
	rows := append([][]string{}, testsupport.DriftEvents...)
	rows = append(rows,
		[]string{"2024-01-05T00:00:00Z", "dev-3", "A3", "R9", "S9", ""},
		[]string{"2024-01-06T00:00:00Z", "dev-4", "", "R1", "", "F1"},
		[]string{"2024-01-07T00:00:00Z", "dev-5", "A2", "", "", ""},
	)

	assignments := func(mode string) []results.Assignment {
		cfg := testsupport.NewConfig(t, testsupport.WithEvents(rows...), testsupport.WithEncoding(mode))
		if _, err := workflow.New(cfg, nil, fixedRunID("run-"+mode)).Run(context.Background()); err != nil {
			t.Fatalf("Run(%s): %v", mode, err)
		}
		store := testsupport.MustOpenResults(t, cfg)
		var out []results.Assignment
		if err := store.Assignments(context.Background(), "run-"+mode, func(a results.Assignment) error {
			out = append(out, a)
			return nil
		}); err != nil {
			t.Fatalf("Assignments(%s): %v", mode, err)
		}
		return out
	}

	batch := assignments("batch")
	lazy := assignments("lazy")
	if len(batch) != len(lazy) || len(batch) != len(rows) {
		t.Fatalf("length mismatch batch=%d lazy=%d", len(batch), len(lazy))
	}
	for i := range batch {
		b, l := batch[i], lazy[i]
		if b.IdentityKey != l.IdentityKey || b.IsNew != l.IsNew || b.MatchedFeature != l.MatchedFeature {
			t.Fatalf("row %d differs: batch=%+v lazy=%+v", i, b, l)
		}
	}
}

func TestRunFailsWhenResultsLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEvents(testsupport.DriftEvents...))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	held, err := results.Open(context.Background(), cfg.Output.ResultsDB, true)
	if err != nil {
		t.Fatalf("results.Open: %v", err)
	}
	defer held.Close()

	_, err = workflow.New(cfg, nil).Run(context.Background())
	if err == nil {
		t.Fatal("expected lock failure")
	}
	if stage.Classify(err) != stage.KindPersistence {
		t.Fatalf("kind = %q, err = %v", stage.Classify(err), err)
	}
	if stage.ExitCode(err) != 4 {
		t.Fatalf("exit code = %d", stage.ExitCode(err))
	}
}

func TestRunMissingInput(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithInput("/nonexistent/events.csv"))
	_, err := workflow.New(cfg, nil).Run(context.Background())
	if err == nil {
		t.Fatal("expected missing input failure")
	}
	if stage.Classify(err) != stage.KindInput {
		t.Fatalf("kind = %q, err = %v", stage.Classify(err), err)
	}
}

func TestRunMissingFeatureColumn(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithEvents(testsupport.DriftEvents...),
		testsupport.WithRoles("anchor_android_id", []string{"reducer_missing"}, []string{"matcher_serial"}),
	)
	_, err := workflow.New(cfg, nil).Run(context.Background())
	if stage.Classify(err) != stage.KindValidation {
		t.Fatalf("kind = %q, err = %v", stage.Classify(err), err)
	}

	store := testsupport.MustOpenResults(t, cfg)
	run, err := store.GetRun(context.Background(), "")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != results.StatusFailed || !strings.Contains(run.ErrorMessage, "reducer_missing") {
		t.Fatalf("failed run not recorded: %+v", run)
	}
}

func TestRunCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEvents(testsupport.DriftEvents...))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := workflow.New(cfg, nil).Run(ctx)
	if !workflow.IsCancelled(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancellation not wrapped: %v", err)
	}
}

func TestAnalyzeProfilesWithoutResolving(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEvents(testsupport.DriftEvents...))
	report, err := workflow.New(cfg, nil).Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.Profile == nil {
		t.Fatal("expected profile")
	}
	if report.Summary.TotalRows != 0 {
		t.Fatalf("analyze should not resolve, summary %+v", report.Summary)
	}
	if len(report.Profile.Features) != 4 {
		t.Fatalf("profiled %d features", len(report.Profile.Features))
	}
	for _, fs := range report.Profile.Features {
		if fs.TotalValues == 0 || fs.UniqueValues == 0 {
			t.Fatalf("empty stats for %s: %+v", fs.Feature, fs)
		}
	}
	if _, err := os.Stat(cfg.Output.ResultsDB); !os.IsNotExist(err) {
		t.Fatalf("analyze should not create the results database, stat err %v", err)
	}
}

func TestRunWritesMetricsTextfile(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithEvents(testsupport.DriftEvents...),
		testsupport.WithMetricsTextfile("fpmatch.prom"),
		testsupport.WithAnalysis(),
	)
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	runner := workflow.New(cfg, nil, workflow.WithClock(func() time.Time { return now }))
	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Profile == nil {
		t.Fatal("analysis enabled but no profile")
	}

	data, err := os.ReadFile(cfg.Metrics.Textfile)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"fpmatch_events_total 4",
		"fpmatch_identities_created_total 3",
		`fpmatch_matches_total{feature="matcher_serial"} 1`,
		"fpmatch_identities 3",
		"fpmatch_last_run_success 1",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics missing %q:\n%s", want, text)
		}
	}
}

func TestRunTracesOneAnchorValue(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEvents(testsupport.DriftEvents...))
	cfg.Engine.TraceAnchorValue = "A2"
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if _, err := workflow.New(cfg, logger).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var phases []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if !strings.Contains(line, `"msg":"resolve trace"`) {
			continue
		}
		if !strings.Contains(line, `"row":1`) {
			t.Fatalf("trace logged for another row: %s", line)
		}
		for _, phase := range []string{"anchor", "reduce", "identify", "update"} {
			if strings.Contains(line, `"phase":"`+phase+`"`) {
				phases = append(phases, phase)
			}
		}
	}
	if !slices.Equal(phases, []string{"anchor", "reduce", "identify", "update"}) {
		t.Fatalf("trace phases = %v\n%s", phases, buf.String())
	}
}

func TestHealthReportsCheckedStages(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEvents(testsupport.DriftEvents...))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	healths := workflow.New(cfg, nil).Health(context.Background())
	var names []string
	for _, h := range healths {
		names = append(names, h.Stage)
		if !h.Ready {
			t.Fatalf("stage %s not ready: %s", h.Stage, h.Detail)
		}
	}
	if !slices.Equal(names, []string{"preflight", "roles"}) {
		t.Fatalf("checked stages = %v", names)
	}
	if msg := stage.NotReady(healths); msg != "" {
		t.Fatalf("NotReady = %q", msg)
	}
}

func TestHealthFlagsMissingInput(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithInput("/nonexistent/events.csv"), testsupport.WithDiscover())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	msg := stage.NotReady(workflow.New(cfg, nil).Health(context.Background()))
	if !strings.Contains(msg, "preflight: Input file") {
		t.Fatalf("preflight failure missing: %q", msg)
	}
	if !strings.Contains(msg, "roles: ") || !strings.Contains(msg, "input header") {
		t.Fatalf("roles failure missing: %q", msg)
	}
}

func TestHealthFlagsHeldLock(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEvents(testsupport.DriftEvents...))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	held, err := results.Open(context.Background(), cfg.Output.ResultsDB, true)
	if err != nil {
		t.Fatalf("results.Open: %v", err)
	}
	defer held.Close()

	msg := stage.NotReady(workflow.New(cfg, nil).Health(context.Background()))
	if !strings.Contains(msg, "held by another run") {
		t.Fatalf("lock not reported: %q", msg)
	}
}

func TestHealthWarnsWithoutReducers(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithEvents(testsupport.DriftEvents...),
		testsupport.WithRoles("anchor_android_id", nil, []string{"matcher_serial"}),
	)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	for _, h := range workflow.New(cfg, nil).Health(context.Background()) {
		if h.Stage != "roles" {
			continue
		}
		if !h.Ready || !strings.Contains(h.Detail, "no reducers") {
			t.Fatalf("roles health = %+v", h)
		}
		return
	}
	t.Fatal("roles stage not checked")
}

func TestRunFailureCarriesAlert(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithInput("/nonexistent/events.csv"))
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	if _, err := workflow.New(cfg, logger).Run(context.Background()); err == nil {
		t.Fatal("expected missing input failure")
	}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if strings.Contains(line, `"msg":"run failed"`) {
			if !strings.Contains(line, `"alert":"input"`) {
				t.Fatalf("run failure without alert: %s", line)
			}
			return
		}
	}
	t.Fatalf("no run failure record in %s", buf.String())
}

func TestRunWithoutReducersAlertsAnchorOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithEvents(testsupport.DriftEvents...),
		testsupport.WithRoles("anchor_android_id", nil, []string{"matcher_serial"}),
	)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	if _, err := workflow.New(cfg, logger).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(buf.String(), `"alert":"anchor_only"`) {
		t.Fatalf("expected anchor_only alert in %s", buf.String())
	}
}
