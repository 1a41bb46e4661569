// Package logging assembles structured slog loggers and formatting helpers used
// across fpmatch.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so workflow stages can tag log
// lines with the run ID and stage name. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
//
// The resolution core (featurecode, identity, engine) does not log; the
// workflow translates engine trace events into debug records here.
package logging
