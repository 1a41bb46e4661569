package engine

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"fpmatch/internal/identity"
)

// AnchorPolicy decides whether a matched identity may change its anchor.
type AnchorPolicy int

const (
	// AnchorDrift overwrites the stored anchor like any other feature.
	AnchorDrift AnchorPolicy = iota
	// AnchorPinned keeps the first anchor an identity was given.
	AnchorPinned
)

func (p AnchorPolicy) String() string {
	if p == AnchorPinned {
		return "pinned"
	}
	return "drift"
}

// ParseAnchorPolicy accepts "drift" (default when empty) or "pinned".
func ParseAnchorPolicy(value string) (AnchorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "drift":
		return AnchorDrift, nil
	case "pinned", "pin":
		return AnchorPinned, nil
	default:
		return AnchorDrift, fmt.Errorf("%w: %q", ErrUnknownPolicy, value)
	}
}

// KeyFunc mints the external key of a new identity.
type KeyFunc func(identity.ID) string

const keyPrefix = "fp_"

// RandomKeys mints a random UUID per identity.
func RandomKeys() KeyFunc {
	return func(identity.ID) string {
		return keyPrefix + uuid.NewString()
	}
}

// StableKeys derives the key from the identity ordinal, so replaying the same
// events yields the same keys.
func StableKeys(namespace uuid.UUID) KeyFunc {
	return func(id identity.ID) string {
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], uint32(id))
		return keyPrefix + uuid.NewSHA1(namespace, buf[:]).String()
	}
}

// KeyScheme resolves a configured scheme name ("uuid" or "stable").
func KeyScheme(name string) (KeyFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "uuid", "random":
		return RandomKeys(), nil
	case "stable":
		return StableKeys(uuid.NameSpaceOID), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKeyScheme, name)
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithAnchorPolicy selects the anchor update policy.
func WithAnchorPolicy(p AnchorPolicy) Option {
	return func(e *Engine) { e.anchorPolicy = p }
}

// WithKeys replaces the identity key generator.
func WithKeys(fn KeyFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.keys = fn
		}
	}
}

// WithTrace installs a callback invoked at every phase boundary.
func WithTrace(fn TraceFunc) Option {
	return func(e *Engine) { e.trace = fn }
}
