package ingest

import (
	"errors"
	"fmt"
	"strings"

	"fpmatch/internal/engine"
)

// Column-name prefixes recognised by DiscoverRoles.
const (
	AnchorPrefix           = "anchor_"
	ReducerPrefix          = "reducer_"
	MatcherPrefix          = "matcher_"
	FallbackMatcherPrefix  = "matcher_fallback_"
	LastCheckMatcherPrefix = "matcher_last_check_"
)

var ErrAmbiguousAnchor = errors.New("more than one anchor column")

// DiscoverRoles derives feature roles from header prefixes. Identification
// features keep header order, except that fallback matchers follow the plain
// ones and last-check matchers come last.
func DiscoverRoles(header []string) (engine.Roles, error) {
	var (
		roles     engine.Roles
		anchors   []string
		fallback  []string
		lastCheck []string
	)
	for _, name := range header {
		switch {
		case strings.HasPrefix(name, AnchorPrefix):
			anchors = append(anchors, name)
		case strings.HasPrefix(name, ReducerPrefix):
			roles.Reducers = append(roles.Reducers, name)
		case strings.HasPrefix(name, FallbackMatcherPrefix):
			fallback = append(fallback, name)
		case strings.HasPrefix(name, LastCheckMatcherPrefix):
			lastCheck = append(lastCheck, name)
		case strings.HasPrefix(name, MatcherPrefix):
			roles.Identifiers = append(roles.Identifiers, name)
		}
	}
	switch len(anchors) {
	case 0:
	case 1:
		roles.Anchor = anchors[0]
	default:
		return engine.Roles{}, fmt.Errorf("%w: %s", ErrAmbiguousAnchor, strings.Join(anchors, ", "))
	}
	roles.Identifiers = append(roles.Identifiers, fallback...)
	roles.Identifiers = append(roles.Identifiers, lastCheck...)
	if err := roles.Validate(); err != nil {
		return engine.Roles{}, fmt.Errorf("discover roles: %w", err)
	}
	return roles, nil
}
