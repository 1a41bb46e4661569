package engine

import "fpmatch/internal/identity"

// Update merges the present values of ev into the signature of id. Each
// changed feature is moved to its new posting set before the signature is
// overwritten. Under AnchorPinned an identity keeps its first anchor.
func (e *Engine) Update(id identity.ID, ev identity.Signature) {
	changed := 0
	for _, feature := range e.features {
		code, ok := ev.Get(feature)
		if !ok {
			continue
		}
		if feature == e.roles.Anchor && e.anchorPolicy == AnchorPinned {
			if _, held := e.store.Value(id, feature); held {
				continue
			}
		}
		if e.store.Assign(id, feature, code) {
			changed++
		}
	}
	e.store.RefreshDiscriminators(id)
	e.emit(TraceEvent{Phase: PhaseUpdate, Identity: id, Matched: true, Changed: changed})
}

// Register creates a new identity from the present values of ev.
func (e *Engine) Register(ev identity.Signature) identity.ID {
	sig := make(identity.Signature, len(e.features))
	for _, feature := range e.features {
		if code, ok := ev.Get(feature); ok {
			sig[feature] = code
		}
	}
	id := e.store.Create(sig, e.keys)
	e.store.RefreshDiscriminators(id)
	e.emit(TraceEvent{Phase: PhaseRegister, Identity: id, Changed: len(sig)})
	return id
}
