package stage_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fpmatch/internal/stage"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := stage.Wrap(stage.ErrInput, "load", "open", "cannot read events", base)
	if !errors.Is(err, stage.ErrInput) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"load", "open", "cannot read events", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarkerAndDetail(t *testing.T) {
	err := stage.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, stage.ErrInternal) {
		t.Fatalf("expected internal marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "stage failure") {
		t.Fatalf("expected fallback detail, got %q", err)
	}
}

func TestClassifyAndExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind stage.Kind
		code int
	}{
		{"nil", nil, stage.KindNone, 0},
		{"configuration", stage.Wrap(stage.ErrConfiguration, "resolve", "roles", "no anchor", nil), stage.KindConfiguration, 2},
		{"validation", stage.Wrap(stage.ErrValidation, "load", "header", "missing column", nil), stage.KindValidation, 2},
		{"input", stage.Wrap(stage.ErrInput, "load", "open", "missing", nil), stage.KindInput, 3},
		{"persistence", stage.Wrap(stage.ErrPersistence, "persist", "insert", "locked", nil), stage.KindPersistence, 4},
		{"unmarked", errors.New("plain"), stage.KindInternal, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stage.Classify(tt.err); got != tt.kind {
				t.Fatalf("Classify = %q, want %q", got, tt.kind)
			}
			if got := stage.ExitCode(tt.err); got != tt.code {
				t.Fatalf("ExitCode = %d, want %d", got, tt.code)
			}
			if tt.err != nil && stage.Hint(tt.err) == "" {
				t.Fatal("expected a hint for non-nil error")
			}
		})
	}
}

func TestFuncHandler(t *testing.T) {
	var seen []string
	h := stage.Func[*[]string]{Label: "collect", Run: func(_ context.Context, dst *[]string) error {
		*dst = append(*dst, "ran")
		return nil
	}}
	if h.Name() != "collect" {
		t.Fatalf("Name = %q", h.Name())
	}
	if err := h.Execute(context.Background(), &seen); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("expected handler to run once, got %v", seen)
	}
	if err := (stage.Func[*[]string]{Label: "empty"}).Execute(context.Background(), &seen); err != nil {
		t.Fatalf("nil Run should be a no-op, got %v", err)
	}
}

func TestHealthConstructors(t *testing.T) {
	if h := stage.Healthy("load"); !h.Ready || h.Stage != "load" {
		t.Fatalf("unexpected healthy record: %+v", h)
	}
	if h := stage.Unhealthy("persist", "locked"); h.Ready || h.Detail != "locked" {
		t.Fatalf("unexpected unhealthy record: %+v", h)
	}
}

func TestCheckAllSkipsUncheckedStages(t *testing.T) {
	handlers := []stage.Handler[int]{
		stage.Func[int]{Label: "plain"},
		stage.Checked[int]{Func: stage.Func[int]{Label: "ready"}},
		stage.Checked[int]{Func: stage.Func[int]{
			Label: "open",
			Check: func(context.Context) stage.Health { return stage.Unhealthy("", "results database locked") },
		}},
	}
	healths := stage.CheckAll(context.Background(), handlers)
	if len(healths) != 2 {
		t.Fatalf("expected 2 health records, got %+v", healths)
	}
	if !healths[0].Ready || healths[0].Stage != "ready" {
		t.Fatalf("unexpected first record %+v", healths[0])
	}
	if healths[1].Ready || healths[1].Stage != "open" {
		t.Fatalf("unexpected second record %+v", healths[1])
	}
	if got := stage.NotReady(healths); got != "open: results database locked" {
		t.Fatalf("NotReady = %q", got)
	}
	if stage.NotReady(healths[:1]) != "" {
		t.Fatal("ready stages should produce no summary")
	}
}
