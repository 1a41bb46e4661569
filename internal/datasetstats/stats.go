package datasetstats

import (
	"cmp"
	"context"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"fpmatch/internal/featurecode"
)

// Recommendation buckets a feature by selectivity.
type Recommendation string

const (
	HighDiscriminative   Recommendation = "high_discriminative"
	MediumDiscriminative Recommendation = "medium_discriminative"
	LowDiscriminative    Recommendation = "low_discriminative"
)

const (
	highSelectivity   = 0.1
	mediumSelectivity = 0.01
	// DefaultTopValues is the number of most frequent values used for coverage.
	DefaultTopValues = 10
)

// Recommend maps a selectivity ratio to a recommendation.
func Recommend(selectivity float64) Recommendation {
	switch {
	case selectivity > highSelectivity:
		return HighDiscriminative
	case selectivity > mediumSelectivity:
		return MediumDiscriminative
	default:
		return LowDiscriminative
	}
}

// FeatureStats describes one column.
type FeatureStats struct {
	Feature      string
	UniqueValues int
	// TotalValues counts rows carrying a value.
	TotalValues int
	// Selectivity is UniqueValues / TotalValues.
	Selectivity float64
	// NullRatio is the share of rows without a value.
	NullRatio float64
	// TopCoverage is the share of TotalValues held by the most frequent values.
	TopCoverage    float64
	Recommendation Recommendation
}

// Report is the profile of a dataset, features sorted by selectivity
// descending.
type Report struct {
	Rows      int
	TopValues int
	Features  []FeatureStats
	// Empty lists requested features that carried no value at all.
	Empty []string
}

// ByRecommendation returns the features with the given recommendation in
// report order.
func (r Report) ByRecommendation(rec Recommendation) []string {
	var out []string
	for _, f := range r.Features {
		if f.Recommendation == rec {
			out = append(out, f.Feature)
		}
	}
	return out
}

// Analyze profiles each feature in columns. Values are compared after the
// same normalization the resolver uses, so empty-equivalents count as
// missing. Columns are profiled concurrently.
func Analyze(ctx context.Context, columns map[string][]featurecode.Raw, features []string, topValues int) (Report, error) {
	if topValues <= 0 {
		topValues = DefaultTopValues
	}
	report := Report{TopValues: topValues}
	for _, f := range features {
		if n := len(columns[f]); n > report.Rows {
			report.Rows = n
		}
	}

	var (
		mu    sync.Mutex
		stats = make([]FeatureStats, 0, len(features))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, feature := range dedupe(features) {
		values, ok := columns[feature]
		if !ok {
			mu.Lock()
			report.Empty = append(report.Empty, feature)
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fs, ok := profile(feature, values, report.Rows, topValues)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				stats = append(stats, fs)
			} else {
				report.Empty = append(report.Empty, feature)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	slices.SortFunc(stats, func(a, b FeatureStats) int {
		if c := cmp.Compare(b.Selectivity, a.Selectivity); c != 0 {
			return c
		}
		return cmp.Compare(a.Feature, b.Feature)
	})
	slices.Sort(report.Empty)
	report.Features = stats
	return report, nil
}

func profile(feature string, values []featurecode.Raw, rows, topValues int) (FeatureStats, bool) {
	counts := make(map[string]int)
	total := 0
	for _, raw := range values {
		v, ok := featurecode.Normalize(raw)
		if !ok {
			continue
		}
		counts[v]++
		total++
	}
	if total == 0 {
		return FeatureStats{}, false
	}

	freq := make([]int, 0, len(counts))
	for _, n := range counts {
		freq = append(freq, n)
	}
	slices.SortFunc(freq, func(a, b int) int { return cmp.Compare(b, a) })
	top := 0
	for _, n := range freq[:min(topValues, len(freq))] {
		top += n
	}

	selectivity := float64(len(counts)) / float64(total)
	fs := FeatureStats{
		Feature:        feature,
		UniqueValues:   len(counts),
		TotalValues:    total,
		Selectivity:    selectivity,
		TopCoverage:    float64(top) / float64(total),
		Recommendation: Recommend(selectivity),
	}
	if rows > 0 {
		fs.NullRatio = float64(rows-total) / float64(rows)
	}
	return fs, true
}

func dedupe(features []string) []string {
	seen := make(map[string]struct{}, len(features))
	out := make([]string, 0, len(features))
	for _, f := range features {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
