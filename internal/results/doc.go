// Package results persists resolve runs in SQLite and exposes the queries the
// CLI reports from.
//
// A run records the roles and policies it used, one assignment per input
// event (processing order, source row, identity key, whether the identity was
// new, the feature that matched, and the passthrough columns), and the
// per-feature match tallies. Writers hold an exclusive file lock next to the
// database so two runs never interleave.
//
// Schema changes bump schemaVersion in schema.go; users delete the database to
// adopt the new schema.
package results
