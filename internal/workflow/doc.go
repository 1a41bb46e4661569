// Package workflow drives one resolve run over an input file.
//
// A Runner executes an ordered list of stages against a shared State:
// preflight, roles, open results, load, profile, encode, resolve, persist,
// export, and report. Each stage wraps its failures with a stage marker so
// the CLI can classify them. The results database stays locked for the whole
// run, and a failed run is recorded with its error.
//
// The resolve stage is strictly sequential: the identity assigned to an event
// depends on every event before it.
package workflow
