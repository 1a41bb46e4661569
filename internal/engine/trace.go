package engine

import "fpmatch/internal/identity"

// Phase names a step of resolution.
type Phase string

const (
	PhaseAnchor   Phase = "anchor"
	PhaseReduce   Phase = "reduce"
	PhaseIdentify Phase = "identify"
	PhaseUpdate   Phase = "update"
	PhaseRegister Phase = "register"
)

// TraceEvent describes the state at a phase boundary. Candidates is the size
// of the candidate set the phase worked with; Matched reports whether the
// phase produced the result.
type TraceEvent struct {
	Phase      Phase
	Feature    string
	Candidates int
	Matched    bool
	Identity   identity.ID
	Changed    int
}

// TraceFunc receives trace events. It must not call back into the engine.
type TraceFunc func(TraceEvent)

func (e *Engine) emit(ev TraceEvent) {
	if e.trace != nil {
		e.trace(ev)
	}
}
