package featurecode

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Column holds the codes of one feature for every row of a batch together
// with the table that maps a code back to its normalized value.
type Column struct {
	Codes      []Code
	Categories []string
}

// Decode returns the normalized value behind code.
func (c Column) Decode(code Code) (string, bool) {
	if !code.Valid() || int(code) >= len(c.Categories) {
		return "", false
	}
	return c.Categories[code], true
}

// Cardinality is the number of distinct present values in the column.
func (c Column) Cardinality() int {
	return len(c.Categories)
}

// Encode builds a batch dictionary over values and codes every row.
// Categories are sorted so the same multiset of values always yields the same
// codes.
func Encode(values []Raw) Column {
	normalized := make([]string, len(values))
	present := make([]bool, len(values))
	distinct := make(map[string]struct{})
	for i, raw := range values {
		value, ok := Normalize(raw)
		if !ok {
			continue
		}
		normalized[i] = value
		present[i] = true
		distinct[value] = struct{}{}
	}

	categories := make([]string, 0, len(distinct))
	for value := range distinct {
		categories = append(categories, value)
	}
	sort.Strings(categories)

	lookup := make(map[string]Code, len(categories))
	for i, value := range categories {
		lookup[value] = Code(i)
	}

	codes := make([]Code, len(values))
	for i := range values {
		if !present[i] {
			codes[i] = Absent
			continue
		}
		codes[i] = lookup[normalized[i]]
	}
	return Column{Codes: codes, Categories: categories}
}

// EncodeColumns encodes every named column concurrently. Columns are
// independent, so the only failure mode is cancellation.
func EncodeColumns(ctx context.Context, columns map[string][]Raw) (map[string]Column, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]Column, len(columns))
	)
	g, gctx := errgroup.WithContext(ctx)
	for name, values := range columns {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			col := Encode(values)
			mu.Lock()
			out[name] = col
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
