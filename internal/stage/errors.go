package stage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrInput         = errors.New("input error")
	ErrPersistence   = errors.New("persistence error")
	ErrInternal      = errors.New("internal error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrInternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind names the class of a failed run.
type Kind string

const (
	KindNone          Kind = ""
	KindConfiguration Kind = "configuration"
	KindValidation    Kind = "validation"
	KindInput         Kind = "input"
	KindPersistence   Kind = "persistence"
	KindInternal      Kind = "internal"
)

// Classify maps an error to its kind. Unmarked errors are internal.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrInput):
		return KindInput
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	default:
		return KindInternal
	}
}

// ExitCode maps an error to the process exit status the CLI reports.
func ExitCode(err error) int {
	switch Classify(err) {
	case KindNone:
		return 0
	case KindConfiguration, KindValidation:
		return 2
	case KindInput:
		return 3
	case KindPersistence:
		return 4
	default:
		return 1
	}
}

// Hint returns operator guidance for an error kind.
func Hint(err error) string {
	switch Classify(err) {
	case KindConfiguration:
		return "check the [features] and [engine] sections of the config file"
	case KindValidation:
		return "fix the reported value and rerun"
	case KindInput:
		return "verify input.path exists and is a readable CSV"
	case KindPersistence:
		return "check output.results_db permissions and that no other run holds the lock"
	case KindInternal:
		return "rerun with --log-level debug and inspect the log file"
	default:
		return ""
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "stage failure"
	}
	return strings.Join(parts, ": ")
}
