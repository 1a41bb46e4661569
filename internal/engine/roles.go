package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoAnchor         = errors.New("anchor feature is required")
	ErrNoIdentifiers    = errors.New("at least one identification feature is required")
	ErrBlankFeature     = errors.New("feature names must not be blank")
	ErrDuplicateFeature = errors.New("feature assigned to more than one role")
	ErrUnknownPolicy    = errors.New("unknown anchor policy")
	ErrUnknownKeyScheme = errors.New("unknown identity key scheme")
)

// Roles classifies features. Reducers and Identifiers are tried in the listed
// order.
type Roles struct {
	Anchor      string
	Reducers    []string
	Identifiers []string
}

// Features lists every feature: anchor first, then reducers, then
// identifiers.
func (r Roles) Features() []string {
	out := make([]string, 0, 1+len(r.Reducers)+len(r.Identifiers))
	out = append(out, r.Anchor)
	out = append(out, r.Reducers...)
	out = append(out, r.Identifiers...)
	return out
}

// Validate checks the role lists once, before any event is processed.
func (r Roles) Validate() error {
	if strings.TrimSpace(r.Anchor) == "" {
		return ErrNoAnchor
	}
	if len(r.Identifiers) == 0 {
		return ErrNoIdentifiers
	}
	seen := make(map[string]struct{}, 1+len(r.Reducers)+len(r.Identifiers))
	for _, f := range r.Features() {
		if strings.TrimSpace(f) == "" {
			return ErrBlankFeature
		}
		if _, dup := seen[f]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateFeature, f)
		}
		seen[f] = struct{}{}
	}
	return nil
}
