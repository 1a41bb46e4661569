// Package identity owns the evolving device identities: one signature per
// identity (feature name to latest observed code) and an inverted index from
// (feature, code) to the identities currently holding that code.
//
// The index is a map of Roaring bitmaps keyed by feature then code. Every
// mutation goes through Assign or Create, which keep the index in lockstep
// with the signatures: an identity sits under (feature, code) if and only if
// its signature maps feature to code. Bitmaps that lose their last holder are
// dropped.
//
// Identities are addressed by a dense ordinal (ID) assigned in creation
// order; the externally visible key is minted by the caller at creation time.
// Callers never receive references into the index; Holders returns a copy.
//
// The store is not safe for concurrent use. Resolution is strictly
// sequential, so no locking is done here.
package identity
