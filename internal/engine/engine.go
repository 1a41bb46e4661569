package engine

import (
	"fpmatch/internal/featurecode"
	"fpmatch/internal/identity"
)

// NoMatch is the matched-feature label recorded for events that created a new
// identity.
const NoMatch = "No Match"

// Match is a successful lookup: the identity and the feature that agreed.
type Match struct {
	Identity identity.ID
	Feature  string
}

// Assignment is the per-event outcome handed back to the driver.
type Assignment struct {
	Identity identity.ID
	Key      string
	IsNew    bool
	// Feature is the feature that produced the match, or NoMatch.
	Feature string
}

// Engine owns one identity store and resolves events against it.
type Engine struct {
	roles        Roles
	features     []string
	store        *identity.Store
	anchorPolicy AnchorPolicy
	keys         KeyFunc
	trace        TraceFunc
}

// New validates roles and returns an engine with an empty store.
func New(roles Roles, opts ...Option) (*Engine, error) {
	if err := roles.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		roles:    roles,
		features: roles.Features(),
		keys:     RandomKeys(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.store = identity.NewStore(e.features...)
	return e, nil
}

// Roles returns the configured feature roles.
func (e *Engine) Roles() Roles {
	return e.roles
}

// Resolve matches ev and applies the signature update, registering a new
// identity when nothing matched.
func (e *Engine) Resolve(ev identity.Signature) Assignment {
	if m, ok := e.Match(ev); ok {
		e.Update(m.Identity, ev)
		return Assignment{
			Identity: m.Identity,
			Key:      e.store.Key(m.Identity),
			Feature:  m.Feature,
		}
	}
	id := e.Register(ev)
	return Assignment{
		Identity: id,
		Key:      e.store.Key(id),
		IsNew:    true,
		Feature:  NoMatch,
	}
}

// Len is the number of identities.
func (e *Engine) Len() int {
	return e.store.Len()
}

// Key returns the external key of id.
func (e *Engine) Key(id identity.ID) string {
	return e.store.Key(id)
}

// Signature returns a copy of the stored signature of id.
func (e *Engine) Signature(id identity.ID) identity.Signature {
	return e.store.Signature(id)
}

// Holders lists, in ascending order, the identities indexed under
// (feature, code).
func (e *Engine) Holders(feature string, code featurecode.Code) []identity.ID {
	bm := e.store.Holders(feature, code)
	out := make([]identity.ID, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, identity.ID(it.Next()))
	}
	return out
}

// Discriminators returns the informational sharing scores of id.
func (e *Engine) Discriminators(id identity.ID) map[string]int {
	return e.store.Discriminators(id)
}

// Analysis summarizes the identity store.
func (e *Engine) Analysis() identity.Analysis {
	return e.store.Analysis()
}
