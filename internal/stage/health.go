package stage

import (
	"context"
	"strings"
)

// Health is the readiness of one stage for the next run.
type Health struct {
	Stage  string
	Ready  bool
	Detail string
}

// Healthy reports a stage that can run.
func Healthy(stage string) Health {
	return Health{Stage: stage, Ready: true}
}

// Unhealthy reports a stage that would fail, with the reason.
func Unhealthy(stage, detail string) Health {
	return Health{Stage: stage, Detail: detail}
}

// CheckAll asks every handler that implements Checker for its readiness, in
// pipeline order. Handlers without a check are skipped.
func CheckAll[S any](ctx context.Context, handlers []Handler[S]) []Health {
	out := make([]Health, 0, len(handlers))
	for _, h := range handlers {
		checker, ok := h.(Checker)
		if !ok {
			continue
		}
		health := checker.HealthCheck(ctx)
		if health.Stage == "" {
			health.Stage = h.Name()
		}
		out = append(out, health)
	}
	return out
}

// NotReady returns the failing records joined into one line, or "" when
// every stage is ready.
func NotReady(healths []Health) string {
	var parts []string
	for _, h := range healths {
		if !h.Ready {
			parts = append(parts, h.Stage+": "+h.Detail)
		}
	}
	return strings.Join(parts, "; ")
}
