package datasetstats_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"testing"

	"fpmatch/internal/datasetstats"
	"fpmatch/internal/featurecode"
)

func raws(values ...string) []featurecode.Raw {
	out := make([]featurecode.Raw, len(values))
	for i, v := range values {
		if v == "<missing>" {
			out[i] = featurecode.Missing
			continue
		}
		out[i] = featurecode.String(v)
	}
	return out
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRecommend(t *testing.T) {
	tests := []struct {
		selectivity float64
		want        datasetstats.Recommendation
	}{
		{1, datasetstats.HighDiscriminative},
		{0.11, datasetstats.HighDiscriminative},
		{0.1, datasetstats.MediumDiscriminative},
		{0.02, datasetstats.MediumDiscriminative},
		{0.01, datasetstats.LowDiscriminative},
		{0, datasetstats.LowDiscriminative},
	}
	for _, tt := range tests {
		if got := datasetstats.Recommend(tt.selectivity); got != tt.want {
			t.Errorf("Recommend(%v) = %s, want %s", tt.selectivity, got, tt.want)
		}
	}
}

func TestAnalyzeComputesStats(t *testing.T) {
	columns := map[string][]featurecode.Raw{
		"serial": raws("a", "b", "c", "d"),
		"model":  raws("x", "x", "x", "null"),
		"empty":  raws("", "NaN", "<missing>", "[]"),
	}
	report, err := datasetstats.Analyze(context.Background(), columns, []string{"model", "serial", "empty", "absent"}, 1)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.Rows != 4 {
		t.Fatalf("rows = %d, want 4", report.Rows)
	}
	if len(report.Features) != 2 {
		t.Fatalf("features = %+v", report.Features)
	}
	serial, model := report.Features[0], report.Features[1]
	if serial.Feature != "serial" || model.Feature != "model" {
		t.Fatalf("expected selectivity order serial, model; got %s, %s", serial.Feature, model.Feature)
	}
	if serial.UniqueValues != 4 || !approx(serial.Selectivity, 1) || !approx(serial.TopCoverage, 0.25) || serial.NullRatio != 0 {
		t.Fatalf("unexpected serial stats %+v", serial)
	}
	if model.UniqueValues != 1 || model.TotalValues != 3 || !approx(model.NullRatio, 0.25) || !approx(model.TopCoverage, 1) {
		t.Fatalf("unexpected model stats %+v", model)
	}
	if model.Recommendation != datasetstats.HighDiscriminative {
		t.Fatalf("1/3 selectivity should be high, got %s", model.Recommendation)
	}
	if !slices.Equal(report.Empty, []string{"absent", "empty"}) {
		t.Fatalf("empty = %v", report.Empty)
	}
}

func TestAnalyzeLowSelectivity(t *testing.T) {
	values := make([]string, 1000)
	for i := range values {
		values[i] = fmt.Sprintf("v%d", i%5)
	}
	report, err := datasetstats.Analyze(context.Background(), map[string][]featurecode.Raw{"os": raws(values...)}, []string{"os"}, 0)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.TopValues != datasetstats.DefaultTopValues {
		t.Fatalf("top values = %d", report.TopValues)
	}
	if got := report.ByRecommendation(datasetstats.LowDiscriminative); !slices.Equal(got, []string{"os"}) {
		t.Fatalf("low features = %v", got)
	}
}

func TestAnalyzeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := datasetstats.Analyze(ctx, map[string][]featurecode.Raw{"a": raws("1")}, []string{"a"}, 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
