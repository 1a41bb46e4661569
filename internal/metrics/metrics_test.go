package metrics_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fpmatch/internal/metrics"
)

func TestRecorderWritesTextfile(t *testing.T) {
	rec := metrics.NewRecorder()
	rec.ObserveAssignment(true, "No Match")
	rec.ObserveAssignment(false, "anchor_android_id")
	rec.ObserveAssignment(false, "anchor_android_id")
	rec.SetIdentities(1)
	rec.ObserveStage("resolve", 1500*time.Millisecond)
	rec.Finish(true, 2*time.Second, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "nested", "fpmatch.prom")
	if err := rec.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"fpmatch_events_total 3",
		"fpmatch_identities_created_total 1",
		`fpmatch_matches_total{feature="anchor_android_id"} 2`,
		`fpmatch_matches_total{feature="No Match"} 1`,
		"fpmatch_identities 1",
		`fpmatch_stage_duration_seconds{stage="resolve"} 1.5`,
		"fpmatch_run_duration_seconds 2",
		"fpmatch_last_run_success 1",
		"fpmatch_last_run_timestamp_seconds 1.7e+09",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in textfile:\n%s", want, text)
		}
	}
}

func TestRecorderGatherFailureFlag(t *testing.T) {
	rec := metrics.NewRecorder()
	rec.Finish(false, time.Second, time.Now())

	families, err := rec.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "fpmatch_last_run_success" {
			continue
		}
		if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 0 {
			t.Fatalf("last_run_success = %v, want 0", got)
		}
		return
	}
	t.Fatal("fpmatch_last_run_success not gathered")
}

func TestNilRecorderIsNoop(t *testing.T) {
	var rec *metrics.Recorder
	rec.ObserveAssignment(true, "No Match")
	rec.ObserveStage("load", time.Second)
	rec.SetIdentities(3)
	rec.Finish(true, time.Second, time.Now())
	if err := rec.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Fatalf("nil recorder WriteTextfile: %v", err)
	}
}
