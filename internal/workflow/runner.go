package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fpmatch/internal/config"
	"fpmatch/internal/logging"
	"fpmatch/internal/metrics"
	"fpmatch/internal/results"
	"fpmatch/internal/stage"
)

// Runner executes resolve runs for one configuration.
type Runner struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
	newID   func() string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithRunID fixes the id minted for each run.
func WithRunID(fn func() string) Option {
	return func(r *Runner) { r.newID = fn }
}

// New constructs a Runner. A nil logger discards output.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "workflow"),
		metrics: metrics.NewRecorder(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Metrics exposes the recorder of the most recent run.
func (r *Runner) Metrics() *metrics.Recorder {
	return r.metrics
}

// Run resolves the configured input and persists the results.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	return r.execute(ctx, r.pipeline(), true)
}

// Health reports the readiness of every stage of Run that can check itself
// without touching the input rows or the results database contents.
func (r *Runner) Health(ctx context.Context) []stage.Health {
	if r.cfg == nil {
		return []stage.Health{stage.Unhealthy("workflow", "configuration unavailable")}
	}
	return stage.CheckAll(ctx, r.pipeline())
}

func (r *Runner) pipeline() []stage.Handler[*State] {
	return []stage.Handler[*State]{
		r.checked("preflight", r.preflight, r.checkPreflight),
		r.checked("roles", r.resolveRoles, r.checkRoles),
		r.stage("open", r.openResults),
		r.stage("load", r.load),
		r.stage("profile", r.profile),
		r.stage("encode", r.encode),
		r.stage("resolve", r.resolve),
		r.stage("persist", r.persist),
		r.stage("export", r.export),
	}
}

// Analyze loads the input and profiles its feature columns without
// resolving anything.
func (r *Runner) Analyze(ctx context.Context) (*Report, error) {
	stages := []stage.Handler[*State]{
		r.stage("roles", r.resolveRoles),
		r.stage("load", r.load),
		r.stage("profile", r.forceProfile),
	}
	return r.execute(ctx, stages, false)
}

func (r *Runner) stage(name string, fn func(context.Context, *State) error) stage.Handler[*State] {
	return stage.Func[*State]{Label: name, Run: fn}
}

func (r *Runner) checked(name string, fn func(context.Context, *State) error, check func(context.Context) stage.Health) stage.Handler[*State] {
	return stage.Checked[*State]{Func: stage.Func[*State]{Label: name, Run: fn, Check: check}}
}

func (r *Runner) execute(ctx context.Context, stages []stage.Handler[*State], record bool) (*Report, error) {
	if r.cfg == nil {
		return nil, stage.Wrap(stage.ErrConfiguration, "workflow", "start", "configuration unavailable", nil)
	}
	r.metrics = metrics.NewRecorder()
	state := &State{
		RunID:     r.newID(),
		StartedAt: r.now(),
		Tally:     results.NewTally(),
	}
	ctx = logging.WithRunID(ctx, state.RunID)
	logger := logging.WithContext(ctx, r.logger)
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("input", r.cfg.Input.Path),
	)

	runErr := r.runStages(ctx, state, stages)
	if record {
		r.finish(ctx, state, runErr)
	}

	report := r.report(state)
	if runErr != nil {
		logging.ErrorWithContext(logger, "run failed", "run_failed",
			logging.Error(runErr),
			logging.Alert(string(stage.Classify(runErr))),
			logging.String(logging.FieldErrorHint, stage.Hint(runErr)),
			logging.Duration("duration", report.Duration),
		)
		return report, runErr
	}
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("rows", report.Summary.TotalRows),
		logging.Int("identities", report.Summary.UniqueIdentities),
		logging.Float64("match_rate", report.Summary.MatchRate),
		logging.Duration("duration", report.Duration),
	)
	return report, nil
}

func (r *Runner) runStages(ctx context.Context, state *State, stages []stage.Handler[*State]) error {
	for _, h := range stages {
		if err := ctx.Err(); err != nil {
			return stage.Wrap(stage.ErrInternal, h.Name(), "start", "run cancelled", err)
		}
		stageCtx := logging.WithStage(ctx, h.Name())
		stageLogger := logging.WithContext(stageCtx, r.logger)
		start := r.now()
		stageLogger.Debug("stage started", logging.String(logging.FieldEventType, "stage_start"))

		err := h.Execute(stageCtx, state)
		elapsed := r.now().Sub(start)
		state.Timings = append(state.Timings, StageTiming{Stage: h.Name(), Duration: elapsed})
		r.metrics.ObserveStage(h.Name(), elapsed)
		if err != nil {
			return err
		}
		stageLogger.Debug("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("stage_duration", elapsed),
		)
	}
	return nil
}

// finish records the outcome in the results database and the metrics
// textfile, then releases the database lock.
func (r *Runner) finish(ctx context.Context, state *State, runErr error) {
	logger := logging.WithContext(ctx, r.logger)
	finishedAt := r.now()

	if state.store != nil {
		// The run context may already be cancelled; the outcome is still recorded.
		recordCtx := context.WithoutCancel(ctx)
		if err := state.store.FinishRun(recordCtx, state.RunID, state.Tally.Summary(), runErr); err != nil {
			logging.WarnWithContext(logger, "failed to record run outcome", "results_finish_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "results summary shows the run as running"),
			)
		}
		if err := state.store.Close(); err != nil {
			logger.Warn("failed to close results database", logging.Error(err))
		}
		state.store = nil
	}

	r.metrics.Finish(runErr == nil, finishedAt.Sub(state.StartedAt), finishedAt)
	if state.engine != nil {
		r.metrics.SetIdentities(state.engine.Len())
	}
	if err := r.metrics.WriteTextfile(r.cfg.Metrics.Textfile); err != nil {
		logging.WarnWithContext(logger, "failed to write metrics textfile", "metrics_write_failed",
			logging.Error(err),
			logging.String("path", r.cfg.Metrics.Textfile),
			logging.String(logging.FieldImpact, "node exporter keeps the previous values"),
		)
	}
}

func (r *Runner) report(state *State) *Report {
	report := &Report{
		RunID:     state.RunID,
		Roles:     state.Roles,
		InputPath: r.cfg.Input.Path,
		Summary:   state.Tally.Summary(),
		Profile:   state.Profile,
		Analysis:  state.Analysis,
		ResultsDB: r.cfg.Output.ResultsDB,
		CSVPath:   r.cfg.Output.CSVPath,
		Timings:   state.Timings,
		Duration:  r.now().Sub(state.StartedAt),
	}
	if state.Batch != nil {
		report.Rows = state.Batch.Len()
		report.Sorted = state.Batch.Sorted
	}
	return report
}

// IsCancelled reports whether err came from context cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
