package engine

import (
	"github.com/RoaringBitmap/roaring/v2"

	"fpmatch/internal/identity"
)

// Match searches for an identity for ev without modifying the store.
func (e *Engine) Match(ev identity.Signature) (Match, bool) {
	if m, ok := e.matchAnchor(ev); ok {
		return m, true
	}
	candidates := e.reduce(ev)
	if candidates == nil {
		return Match{}, false
	}
	return e.identify(ev, candidates)
}

func (e *Engine) matchAnchor(ev identity.Signature) (Match, bool) {
	anchor := e.roles.Anchor
	code, ok := ev.Get(anchor)
	if !ok {
		return Match{}, false
	}
	id, found := e.store.FirstHolder(anchor, code)
	e.emit(TraceEvent{
		Phase:      PhaseAnchor,
		Feature:    anchor,
		Candidates: e.store.HolderCount(anchor, code),
		Matched:    found,
		Identity:   id,
	})
	if !found {
		return Match{}, false
	}
	return Match{Identity: id, Feature: anchor}, true
}

// reduce returns the candidate set agreed on by every present reducer, or nil
// when there is none.
func (e *Engine) reduce(ev identity.Signature) *roaring.Bitmap {
	best := ""
	bestCount := 0
	for _, feature := range e.roles.Reducers {
		code, ok := ev.Get(feature)
		if !ok {
			continue
		}
		n := e.store.HolderCount(feature, code)
		if n > 0 && (best == "" || n < bestCount) {
			best, bestCount = feature, n
		}
	}
	if best == "" {
		e.emit(TraceEvent{Phase: PhaseReduce})
		return nil
	}

	bestCode, _ := ev.Get(best)
	candidates := e.store.Holders(best, bestCode)
	for _, feature := range e.roles.Reducers {
		if feature == best {
			continue
		}
		code, ok := ev.Get(feature)
		if !ok {
			continue
		}
		e.store.Intersect(candidates, feature, code)
		if candidates.IsEmpty() {
			e.emit(TraceEvent{Phase: PhaseReduce, Feature: feature})
			return nil
		}
	}
	e.emit(TraceEvent{
		Phase:      PhaseReduce,
		Feature:    best,
		Candidates: int(candidates.GetCardinality()),
	})
	return candidates
}

func (e *Engine) identify(ev identity.Signature, candidates *roaring.Bitmap) (Match, bool) {
	size := int(candidates.GetCardinality())
	for _, feature := range e.roles.Identifiers {
		code, ok := ev.Get(feature)
		if !ok {
			continue
		}
		it := candidates.Iterator()
		for it.HasNext() {
			id := identity.ID(it.Next())
			if stored, ok := e.store.Value(id, feature); ok && stored == code {
				e.emit(TraceEvent{Phase: PhaseIdentify, Feature: feature, Candidates: size, Matched: true, Identity: id})
				return Match{Identity: id, Feature: feature}, true
			}
		}
	}
	e.emit(TraceEvent{Phase: PhaseIdentify, Candidates: size})
	return Match{}, false
}
