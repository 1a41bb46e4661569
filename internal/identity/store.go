package identity

import (
	"maps"

	"github.com/RoaringBitmap/roaring/v2"

	"fpmatch/internal/featurecode"
)

// ID is the dense ordinal of an identity within one store.
type ID uint32

// Signature maps feature names to encoded values. A feature that is absent or
// mapped to featurecode.Absent carries no information.
type Signature map[string]featurecode.Code

// Get returns the value for feature when it is present.
func (s Signature) Get(feature string) (featurecode.Code, bool) {
	code, ok := s[feature]
	if !ok || !code.Valid() {
		return featurecode.Absent, false
	}
	return code, true
}

// Store holds identity signatures and the inverted index over them.
type Store struct {
	features       []string
	keys           []string
	signatures     []Signature
	discriminators []map[string]int
	index          map[string]map[featurecode.Code]*roaring.Bitmap
}

// NewStore creates an empty store. features fixes the reporting order used by
// Analysis; features first seen later are appended.
func NewStore(features ...string) *Store {
	s := &Store{index: make(map[string]map[featurecode.Code]*roaring.Bitmap, len(features))}
	for _, f := range features {
		s.ensureFeature(f)
	}
	return s
}

func (s *Store) ensureFeature(feature string) map[featurecode.Code]*roaring.Bitmap {
	values, ok := s.index[feature]
	if !ok {
		values = make(map[featurecode.Code]*roaring.Bitmap)
		s.index[feature] = values
		s.features = append(s.features, feature)
	}
	return values
}

// Len is the number of identities.
func (s *Store) Len() int {
	return len(s.signatures)
}

// Key returns the external key minted for id.
func (s *Store) Key(id ID) string {
	if int(id) >= len(s.keys) {
		return ""
	}
	return s.keys[id]
}

// Create registers a new identity. key is called once with the new ordinal to
// mint the external key. Only present values of sig are stored.
func (s *Store) Create(sig Signature, key func(ID) string) ID {
	id := ID(len(s.signatures))
	s.signatures = append(s.signatures, make(Signature, len(sig)))
	s.discriminators = append(s.discriminators, make(map[string]int, len(sig)))
	mint := ""
	if key != nil {
		mint = key(id)
	}
	s.keys = append(s.keys, mint)
	for feature, code := range sig {
		if !code.Valid() {
			continue
		}
		s.Assign(id, feature, code)
	}
	return id
}

// Value returns the stored value of feature for id.
func (s *Store) Value(id ID, feature string) (featurecode.Code, bool) {
	if int(id) >= len(s.signatures) {
		return featurecode.Absent, false
	}
	return s.signatures[id].Get(feature)
}

// Signature returns a copy of the signature of id.
func (s *Store) Signature(id ID) Signature {
	if int(id) >= len(s.signatures) {
		return nil
	}
	return maps.Clone(s.signatures[id])
}

// Assign sets feature to code on id, moving id between posting sets when the
// stored value changes. It reports whether anything changed. Absent codes
// are ignored.
func (s *Store) Assign(id ID, feature string, code featurecode.Code) bool {
	if !code.Valid() || int(id) >= len(s.signatures) {
		return false
	}
	sig := s.signatures[id]
	old, had := sig.Get(feature)
	if had && old == code {
		return false
	}
	values := s.ensureFeature(feature)
	if had {
		s.detach(values, old, id)
	}
	bm, ok := values[code]
	if !ok {
		bm = roaring.New()
		values[code] = bm
	}
	bm.Add(uint32(id))
	sig[feature] = code
	return true
}

func (s *Store) detach(values map[featurecode.Code]*roaring.Bitmap, code featurecode.Code, id ID) {
	bm, ok := values[code]
	if !ok {
		return
	}
	bm.Remove(uint32(id))
	if bm.IsEmpty() {
		delete(values, code)
	}
}

func (s *Store) postings(feature string, code featurecode.Code) *roaring.Bitmap {
	if !code.Valid() {
		return nil
	}
	values, ok := s.index[feature]
	if !ok {
		return nil
	}
	return values[code]
}

// HolderCount is the number of identities currently holding code for feature.
func (s *Store) HolderCount(feature string, code featurecode.Code) int {
	bm := s.postings(feature, code)
	if bm == nil {
		return 0
	}
	return int(bm.GetCardinality())
}

// Holds reports whether id is indexed under (feature, code).
func (s *Store) Holds(feature string, code featurecode.Code, id ID) bool {
	bm := s.postings(feature, code)
	return bm != nil && bm.Contains(uint32(id))
}

// FirstHolder returns the lowest-ordinal identity holding code for feature.
func (s *Store) FirstHolder(feature string, code featurecode.Code) (ID, bool) {
	bm := s.postings(feature, code)
	if bm == nil || bm.IsEmpty() {
		return 0, false
	}
	return ID(bm.Minimum()), true
}

// Holders returns a copy of the posting set for (feature, code). The result is
// never nil.
func (s *Store) Holders(feature string, code featurecode.Code) *roaring.Bitmap {
	bm := s.postings(feature, code)
	if bm == nil {
		return roaring.New()
	}
	return bm.Clone()
}

// Intersect narrows dst to identities that also hold code for feature.
func (s *Store) Intersect(dst *roaring.Bitmap, feature string, code featurecode.Code) {
	bm := s.postings(feature, code)
	if bm == nil {
		dst.Clear()
		return
	}
	dst.And(bm)
}
