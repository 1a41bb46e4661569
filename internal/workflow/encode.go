package workflow

import (
	"context"

	"fpmatch/internal/featurecode"
	"fpmatch/internal/identity"
	"fpmatch/internal/ingest"
)

// encoder turns input rows into signatures.
type encoder interface {
	Signature(row int) identity.Signature
	// Cardinality is the number of distinct values known for feature.
	Cardinality(feature string) int
}

// batchEncoder holds dictionaries built over the whole input.
type batchEncoder struct {
	features []string
	columns  map[string]featurecode.Column
}

func newBatchEncoder(ctx context.Context, batch *ingest.Batch, features []string) (*batchEncoder, error) {
	raw := make(map[string][]featurecode.Raw, len(features))
	for _, f := range features {
		col, ok := batch.Column(f)
		if !ok {
			col = make([]featurecode.Raw, batch.Len())
		}
		raw[f] = col
	}
	columns, err := featurecode.EncodeColumns(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &batchEncoder{features: features, columns: columns}, nil
}

func (e *batchEncoder) Signature(row int) identity.Signature {
	sig := make(identity.Signature, len(e.features))
	for _, f := range e.features {
		if code := e.columns[f].Codes[row]; code.Valid() {
			sig[f] = code
		}
	}
	return sig
}

func (e *batchEncoder) Cardinality(feature string) int {
	return e.columns[feature].Cardinality()
}

// lazyEncoder mints codes on first sight while the resolver walks the rows.
type lazyEncoder struct {
	batch    *ingest.Batch
	features []string
	dicts    map[string]*featurecode.Dictionary
}

func newLazyEncoder(batch *ingest.Batch, features []string) *lazyEncoder {
	dicts := make(map[string]*featurecode.Dictionary, len(features))
	for _, f := range features {
		dicts[f] = featurecode.NewDictionary()
	}
	return &lazyEncoder{batch: batch, features: features, dicts: dicts}
}

func (e *lazyEncoder) Signature(row int) identity.Signature {
	sig := make(identity.Signature, len(e.features))
	for _, f := range e.features {
		if code := e.dicts[f].Code(e.batch.Value(row, f)); code.Valid() {
			sig[f] = code
		}
	}
	return sig
}

func (e *lazyEncoder) Cardinality(feature string) int {
	if d, ok := e.dicts[feature]; ok {
		return d.Len()
	}
	return 0
}
