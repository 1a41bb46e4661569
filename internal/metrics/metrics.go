// Package metrics exposes Prometheus collectors for resolve runs and writes
// them in the node-exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fpmatch"

// Recorder owns the collectors of one run.
type Recorder struct {
	registry *prometheus.Registry

	Events           prometheus.Counter
	IdentitiesNew    prometheus.Counter
	Matches          *prometheus.CounterVec
	Identities       prometheus.Gauge
	StageDuration    *prometheus.GaugeVec
	RunDuration      prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
	LastRunSuccess   prometheus.Gauge
}

// NewRecorder registers the run collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		Events: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events resolved in the last run",
		}),
		IdentitiesNew: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identities_created_total",
			Help:      "Identities registered in the last run",
		}),
		Matches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Events by the feature that matched them",
		}, []string{"feature"}),
		Identities: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "identities",
			Help:      "Identities held by the store at the end of the run",
		}),
		StageDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each workflow stage",
		}, []string{"stage"}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		LastRunSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 when the last run completed, 0 when it failed",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveAssignment counts one resolved event.
func (r *Recorder) ObserveAssignment(isNew bool, feature string) {
	if r == nil {
		return
	}
	r.Events.Inc()
	if isNew {
		r.IdentitiesNew.Inc()
	}
	r.Matches.WithLabelValues(feature).Inc()
}

// ObserveStage records the duration of a stage.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.StageDuration.WithLabelValues(stage).Set(d.Seconds())
}

// SetIdentities records the store size.
func (r *Recorder) SetIdentities(n int) {
	if r == nil {
		return
	}
	r.Identities.Set(float64(n))
}

// Finish records the run outcome.
func (r *Recorder) Finish(success bool, d time.Duration, at time.Time) {
	if r == nil {
		return
	}
	r.RunDuration.Set(d.Seconds())
	r.LastRunTimestamp.Set(float64(at.Unix()))
	if success {
		r.LastRunSuccess.Set(1)
	} else {
		r.LastRunSuccess.Set(0)
	}
}

// WriteTextfile writes the registry to path for the node-exporter textfile
// collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
