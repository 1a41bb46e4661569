package results

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run describes one resolve pass over an input.
type Run struct {
	ID          string
	InputPath   string
	Status      Status
	Anchor      string
	Reducers    []string
	Identifiers []string
	Passthrough []string
	// AnchorPolicy and IDScheme are the engine settings the run used.
	AnchorPolicy     string
	IDScheme         string
	TotalRows        int
	NewIdentities    int
	UniqueIdentities int
	ErrorMessage     string
	StartedAt        time.Time
	FinishedAt       time.Time
}

// Duration returns the wall time of a finished run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Assignment is the persisted outcome of one input event.
type Assignment struct {
	// Seq is the processing position within the run.
	Seq int
	// SourceRow is the zero-based data row in the input file.
	SourceRow      int
	IdentityKey    string
	IsNew          bool
	MatchedFeature string
	Passthrough    map[string]string
}

// Collision is an identity that absorbed events with different values of a
// reference column.
type Collision struct {
	IdentityKey    string
	DistinctValues int
	Events         int
	Values         []string
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
