package workflow

import (
	"log/slog"

	"fpmatch/internal/engine"
	"fpmatch/internal/featurecode"
	"fpmatch/internal/logging"
)

// traceMatcher decides which rows get phase-level debug logging.
type traceMatcher struct {
	anchor string
	value  string
	on     bool
}

func newTraceMatcher(anchor, raw string) traceMatcher {
	value, ok := featurecode.Normalize(featurecode.String(raw))
	return traceMatcher{anchor: anchor, value: value, on: ok}
}

func (m traceMatcher) matches(state *State, row int) bool {
	if !m.on {
		return false
	}
	value, ok := featurecode.Normalize(state.Batch.Value(row, m.anchor))
	return ok && value == m.value
}

// traceFunc logs engine phase boundaries for the row currently flagged in
// state.
func traceFunc(state *State, logger *slog.Logger) engine.TraceFunc {
	return func(ev engine.TraceEvent) {
		if !state.traced {
			return
		}
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "trace"),
			logging.Row(state.row),
			logging.String("phase", string(ev.Phase)),
			logging.Int("candidates", ev.Candidates),
			logging.Bool("matched", ev.Matched),
		}
		if ev.Feature != "" {
			attrs = append(attrs, logging.String("feature", ev.Feature))
		}
		switch ev.Phase {
		case engine.PhaseUpdate, engine.PhaseRegister:
			attrs = append(attrs,
				logging.String("identity", state.engine.Key(ev.Identity)),
				logging.Int("changed", ev.Changed),
			)
		default:
			if ev.Matched {
				attrs = append(attrs, logging.String("identity", state.engine.Key(ev.Identity)))
			}
		}
		logger.Debug("resolve trace", logging.Args(attrs...)...)
	}
}
