package identity

import "maps"

// RefreshDiscriminators recomputes the discriminator score of every feature in
// the signature of id: how many other identities currently share the value.
// Scores of other identities are not touched, so they may lag until those
// identities are updated themselves.
func (s *Store) RefreshDiscriminators(id ID) {
	if int(id) >= len(s.signatures) {
		return
	}
	scores := s.discriminators[id]
	clear(scores)
	for feature, code := range s.signatures[id] {
		scores[feature] = s.HolderCount(feature, code) - 1
	}
}

// Discriminators returns a copy of the last computed scores for id.
func (s *Store) Discriminators(id ID) map[string]int {
	if int(id) >= len(s.discriminators) {
		return nil
	}
	return maps.Clone(s.discriminators[id])
}
