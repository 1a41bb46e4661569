package identity_test

import (
	"fmt"
	"testing"

	"fpmatch/internal/featurecode"
	"fpmatch/internal/identity"
)

func seqKey(id identity.ID) string { return fmt.Sprintf("fp-%d", id) }

func TestCreateIndexesPresentValuesOnly(t *testing.T) {
	s := identity.NewStore("anchor", "reducer", "matcher")
	id := s.Create(identity.Signature{"anchor": 3, "reducer": featurecode.Absent, "matcher": 7}, seqKey)

	if s.Len() != 1 {
		t.Fatalf("expected 1 identity, got %d", s.Len())
	}
	if s.Key(id) != "fp-0" {
		t.Fatalf("unexpected key %q", s.Key(id))
	}
	sig := s.Signature(id)
	if len(sig) != 2 {
		t.Fatalf("expected 2 stored features, got %v", sig)
	}
	if _, ok := sig["reducer"]; ok {
		t.Fatal("absent value must not be stored")
	}
	if !s.Holds("anchor", 3, id) || !s.Holds("matcher", 7, id) {
		t.Fatal("present values must be indexed")
	}
	if s.HolderCount("reducer", featurecode.Absent) != 0 {
		t.Fatal("absent code must never have holders")
	}
}

func TestAssignMovesBetweenPostingSets(t *testing.T) {
	s := identity.NewStore("matcher")
	id := s.Create(identity.Signature{"matcher": 1}, seqKey)

	if changed := s.Assign(id, "matcher", 1); changed {
		t.Fatal("assigning the stored value must be a no-op")
	}
	if changed := s.Assign(id, "matcher", 2); !changed {
		t.Fatal("expected change")
	}
	if s.Holds("matcher", 1, id) {
		t.Fatal("old posting must be removed")
	}
	if !s.Holds("matcher", 2, id) {
		t.Fatal("new posting must be present")
	}
	if got, _ := s.Value(id, "matcher"); got != 2 {
		t.Fatalf("signature not overwritten: %d", got)
	}
	if s.HolderCount("matcher", 1) != 0 {
		t.Fatal("emptied posting set must report zero holders")
	}
	if s.Assign(id, "matcher", featurecode.Absent) {
		t.Fatal("absent values must be ignored")
	}
}

func TestHoldersReturnsCopy(t *testing.T) {
	s := identity.NewStore("anchor")
	a := s.Create(identity.Signature{"anchor": 5}, seqKey)
	b := s.Create(identity.Signature{"anchor": 5}, seqKey)

	holders := s.Holders("anchor", 5)
	holders.Remove(uint32(a))
	if !s.Holds("anchor", 5, a) {
		t.Fatal("mutating Holders result leaked into the index")
	}
	if first, ok := s.FirstHolder("anchor", 5); !ok || first != a {
		t.Fatalf("FirstHolder = %d, %v; want %d", first, ok, a)
	}
	if s.HolderCount("anchor", 5) != 2 || !s.Holds("anchor", 5, b) {
		t.Fatal("expected both identities indexed")
	}
	if s.Holders("anchor", 99).GetCardinality() != 0 {
		t.Fatal("unknown value must yield an empty set")
	}
}

func TestIntersect(t *testing.T) {
	s := identity.NewStore("r1", "r2")
	a := s.Create(identity.Signature{"r1": 1, "r2": 1}, seqKey)
	s.Create(identity.Signature{"r1": 1, "r2": 2}, seqKey)

	set := s.Holders("r1", 1)
	s.Intersect(set, "r2", 1)
	if set.GetCardinality() != 1 || !set.Contains(uint32(a)) {
		t.Fatalf("unexpected intersection %v", set.ToArray())
	}
	s.Intersect(set, "r2", 42)
	if !set.IsEmpty() {
		t.Fatal("intersecting with an unknown value must empty the set")
	}
}

func TestIndexMatchesSignatures(t *testing.T) {
	s := identity.NewStore("f")
	ids := []identity.ID{
		s.Create(identity.Signature{"f": 1}, seqKey),
		s.Create(identity.Signature{"f": 1}, seqKey),
		s.Create(identity.Signature{"f": 2}, seqKey),
	}
	s.Assign(ids[0], "f", 2)
	s.Assign(ids[2], "f", 3)

	for _, id := range ids {
		stored, _ := s.Value(id, "f")
		for code := featurecode.Code(0); code < 5; code++ {
			if held := s.Holds("f", code, id); held != (code == stored) {
				t.Fatalf("identity %d under code %d: held=%v stored=%d", id, code, held, stored)
			}
		}
	}
}

func TestDiscriminators(t *testing.T) {
	s := identity.NewStore("model", "serial")
	a := s.Create(identity.Signature{"model": 1, "serial": 10}, seqKey)
	s.RefreshDiscriminators(a)
	b := s.Create(identity.Signature{"model": 1, "serial": 11}, seqKey)
	s.RefreshDiscriminators(b)

	got := s.Discriminators(b)
	if got["model"] != 1 || got["serial"] != 0 {
		t.Fatalf("unexpected scores %v", got)
	}
	if stale := s.Discriminators(a); stale["model"] != 0 {
		t.Fatalf("scores of untouched identities are only refreshed on demand, got %v", stale)
	}
	s.RefreshDiscriminators(a)
	if s.Discriminators(a)["model"] != 1 {
		t.Fatal("refresh must observe the shared value")
	}
}

func TestAnalysis(t *testing.T) {
	s := identity.NewStore("anchor", "matcher")
	a := s.Create(identity.Signature{"anchor": 1, "matcher": 1}, seqKey)
	b := s.Create(identity.Signature{"matcher": 1}, seqKey)
	c := s.Create(identity.Signature{"anchor": 2}, seqKey)
	for _, id := range []identity.ID{a, b, c} {
		s.RefreshDiscriminators(id)
	}

	got := s.Analysis()
	if got.TotalIdentities != 3 {
		t.Fatalf("total = %d", got.TotalIdentities)
	}
	if got.SignatureSizes.Min != 1 || got.SignatureSizes.Max != 2 {
		t.Fatalf("unexpected size range %+v", got.SignatureSizes)
	}
	if len(got.SignatureSizes.Histogram) != 2 || got.SignatureSizes.Histogram[0].Size != 1 || got.SignatureSizes.Histogram[0].Identities != 2 {
		t.Fatalf("unexpected histogram %+v", got.SignatureSizes.Histogram)
	}
	if len(got.Features) != 2 || got.Features[0].Feature != "anchor" {
		t.Fatalf("unexpected feature order %+v", got.Features)
	}
	matcher := got.Features[1]
	if matcher.UniqueValues != 1 || matcher.Associations != 2 || matcher.AvgIdentitiesPerValue != 2 {
		t.Fatalf("unexpected matcher usage %+v", matcher)
	}
	if anchor := got.Features[0]; anchor.Distinctive != 2 {
		t.Fatalf("expected both anchors distinctive, got %+v", anchor)
	}
}

func TestAnalysisEmptyStore(t *testing.T) {
	got := identity.NewStore("anchor").Analysis()
	if got.TotalIdentities != 0 || got.SignatureSizes.Mean != 0 {
		t.Fatalf("unexpected analysis %+v", got)
	}
	if len(got.Features) != 1 || got.Features[0].UniqueValues != 0 {
		t.Fatalf("unexpected features %+v", got.Features)
	}
}
