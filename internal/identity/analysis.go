package identity

import "sort"

// Analysis summarizes the store for reporting.
type Analysis struct {
	TotalIdentities int
	SignatureSizes  SizeDistribution
	Features        []FeatureUsage
}

// SizeDistribution describes how many features identity signatures carry.
type SizeDistribution struct {
	Min       int
	Max       int
	Mean      float64
	Histogram []SizeBucket
}

// SizeBucket counts identities whose signature has exactly Size features.
type SizeBucket struct {
	Size       int
	Identities int
}

// FeatureUsage reports the cardinality of one feature in the index.
type FeatureUsage struct {
	Feature string
	// UniqueValues is the number of codes held by at least one identity.
	UniqueValues int
	// Associations is the number of (identity, code) pairs for the feature.
	Associations int
	// AvgIdentitiesPerValue is Associations / UniqueValues.
	AvgIdentitiesPerValue float64
	// Distinctive counts identities whose last discriminator score for the
	// feature was zero, meaning no other identity shared the value.
	Distinctive int
}

// Analysis computes the current summary.
func (s *Store) Analysis() Analysis {
	out := Analysis{TotalIdentities: len(s.signatures)}

	counts := make(map[int]int)
	total := 0
	for i, sig := range s.signatures {
		n := len(sig)
		counts[n]++
		total += n
		if i == 0 || n < out.SignatureSizes.Min {
			out.SignatureSizes.Min = n
		}
		if n > out.SignatureSizes.Max {
			out.SignatureSizes.Max = n
		}
	}
	if len(s.signatures) > 0 {
		out.SignatureSizes.Mean = float64(total) / float64(len(s.signatures))
	}
	for size, n := range counts {
		out.SignatureSizes.Histogram = append(out.SignatureSizes.Histogram, SizeBucket{Size: size, Identities: n})
	}
	sort.Slice(out.SignatureSizes.Histogram, func(i, j int) bool {
		return out.SignatureSizes.Histogram[i].Size < out.SignatureSizes.Histogram[j].Size
	})

	for _, feature := range s.features {
		usage := FeatureUsage{Feature: feature}
		for _, bm := range s.index[feature] {
			usage.UniqueValues++
			usage.Associations += int(bm.GetCardinality())
		}
		if usage.UniqueValues > 0 {
			usage.AvgIdentitiesPerValue = float64(usage.Associations) / float64(usage.UniqueValues)
		}
		for _, scores := range s.discriminators {
			if score, ok := scores[feature]; ok && score == 0 {
				usage.Distinctive++
			}
		}
		out.Features = append(out.Features, usage)
	}
	return out
}
