package testsupport

import (
	"path/filepath"
	"testing"

	"fpmatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Roles default to the columns of EventsHeader.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Output.ResultsDB = filepath.Join(base, "data", "results.db")
	cfgVal.Input.TimestampColumn = "timestamp"
	cfgVal.Input.PassthroughColumns = []string{"deviceId"}
	cfgVal.Features.Anchor = "anchor_android_id"
	cfgVal.Features.Reducers = []string{"reducer_sensor_hash"}
	cfgVal.Features.Identifiers = []string{"matcher_serial", "matcher_fallback_ad_id"}
	cfgVal.Engine.IDScheme = "stable"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithInput points the config at an input file.
func WithInput(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Input.Path = path
	}
}

// WithEvents writes EventsHeader plus rows to events.csv under the test base
// directory and points the config at it.
func WithEvents(rows ...[]string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "events.csv")
		WriteCSV(b.t, path, EventsHeader, rows)
		b.cfg.Input.Path = path
	}
}

// WithRoles overrides the feature roles.
func WithRoles(anchor string, reducers, identifiers []string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Features.Anchor = anchor
		b.cfg.Features.Reducers = reducers
		b.cfg.Features.Identifiers = identifiers
	}
}

// WithDiscover clears explicit roles and enables header-prefix discovery.
func WithDiscover() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Features = config.Features{Discover: true}
	}
}

// WithAnchorPolicy sets the engine anchor policy.
func WithAnchorPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.AnchorPolicy = policy
	}
}

// WithEncoding sets the engine encoding mode.
func WithEncoding(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.Encoding = mode
	}
}

// WithCSVOutput enables CSV export to name under the test base directory.
func WithCSVOutput(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Output.CSVPath = filepath.Join(b.baseDir, "out", name)
	}
}

// WithMetricsTextfile enables the Prometheus textfile export.
func WithMetricsTextfile(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metrics.Textfile = filepath.Join(b.baseDir, "metrics", name)
	}
}

// WithAnalysis enables the dataset characteristics report.
func WithAnalysis() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Analysis.Enabled = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
