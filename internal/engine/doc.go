// Package engine resolves encoded device events to persistent fingerprint
// identities.
//
// Matching runs in three ordered phases against the identity store:
//
//  1. Anchor: any identity currently holding the event's anchor value is an
//     immediate match.
//  2. Reduce: the smallest non-empty posting set among the event's reducer
//     values seeds the candidate set, which is then intersected with the
//     posting sets of every other present reducer. Reducers must all agree;
//     an empty intersection ends the search.
//  3. Identify: identification features are tried in priority order and the
//     first candidate sharing the event's value wins.
//
// A match merges the event into the identity's signature (latest value wins);
// no match registers a new identity. Events must be fed in their external
// time order: every outcome depends on all earlier ones.
//
// The engine never logs. Callers that want visibility install a TraceFunc,
// which is invoked at each phase boundary.
package engine
