package results

import (
	"cmp"
	"slices"
)

// FeatureCount is the number of events a feature matched (or NoMatch).
type FeatureCount struct {
	Feature string
	Count   int
	Share   float64
}

// Summary aggregates a run's assignments.
type Summary struct {
	TotalRows        int
	NewIdentities    int
	MatchedRows      int
	UniqueIdentities int
	// MatchRate is MatchedRows / TotalRows.
	MatchRate float64
	ByFeature []FeatureCount
}

// Tally accumulates assignments into a Summary.
type Tally struct {
	rows       int
	newRows    int
	identities map[string]struct{}
	features   map[string]int
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{identities: make(map[string]struct{}), features: make(map[string]int)}
}

// Add records one assignment.
func (t *Tally) Add(key string, isNew bool, feature string) {
	t.rows++
	if isNew {
		t.newRows++
	}
	t.identities[key] = struct{}{}
	t.features[feature]++
}

// Features returns the raw per-feature counts.
func (t *Tally) Features() map[string]int {
	out := make(map[string]int, len(t.features))
	for k, v := range t.features {
		out[k] = v
	}
	return out
}

// Summary computes the aggregate view.
func (t *Tally) Summary() Summary {
	return buildSummary(t.rows, t.newRows, len(t.identities), t.features)
}

func buildSummary(rows, newRows, unique int, features map[string]int) Summary {
	s := Summary{
		TotalRows:        rows,
		NewIdentities:    newRows,
		MatchedRows:      rows - newRows,
		UniqueIdentities: unique,
	}
	if rows > 0 {
		s.MatchRate = float64(s.MatchedRows) / float64(rows)
	}
	for feature, count := range features {
		fc := FeatureCount{Feature: feature, Count: count}
		if rows > 0 {
			fc.Share = float64(count) / float64(rows)
		}
		s.ByFeature = append(s.ByFeature, fc)
	}
	slices.SortFunc(s.ByFeature, func(a, b FeatureCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Feature, b.Feature)
	})
	return s
}
