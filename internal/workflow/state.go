package workflow

import (
	"time"

	"fpmatch/internal/datasetstats"
	"fpmatch/internal/engine"
	"fpmatch/internal/identity"
	"fpmatch/internal/ingest"
	"fpmatch/internal/results"
)

// StageTiming is the wall time of one stage.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// State is shared by the stages of one run.
type State struct {
	RunID     string
	StartedAt time.Time

	Roles   engine.Roles
	Batch   *ingest.Batch
	Profile *datasetstats.Report

	encoder encoder
	engine  *engine.Engine
	store   *results.Store

	Assignments []engine.Assignment
	Tally       *results.Tally
	Analysis    identity.Analysis
	Timings     []StageTiming

	traced bool
	row    int
}

// Report is what a finished run hands back to the caller.
type Report struct {
	RunID     string
	Roles     engine.Roles
	InputPath string
	Rows      int
	Sorted    bool
	Summary   results.Summary
	Profile   *datasetstats.Report
	Analysis  identity.Analysis
	ResultsDB string
	CSVPath   string
	Timings   []StageTiming
	Duration  time.Duration
}
