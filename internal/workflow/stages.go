package workflow

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"fpmatch/internal/datasetstats"
	"fpmatch/internal/engine"
	"fpmatch/internal/featurecode"
	"fpmatch/internal/ingest"
	"fpmatch/internal/logging"
	"fpmatch/internal/preflight"
	"fpmatch/internal/results"
	"fpmatch/internal/stage"
)

const (
	persistBatchSize   = 5000
	cancelCheckRows    = 4096
	progressBucketSize = 10
)

func (r *Runner) preflight(ctx context.Context, _ *State) error {
	if err := r.cfg.EnsureDirectories(); err != nil {
		return stage.Wrap(stage.ErrPersistence, "preflight", "ensure directories", "cannot create working directories", err)
	}
	checks := preflight.RunAll(ctx, r.cfg)
	logger := logging.WithContext(ctx, r.logger)
	for _, c := range checks {
		logger.Debug("preflight check",
			logging.String("check", c.Name),
			logging.Bool("passed", c.Passed),
			logging.String("detail", c.Detail),
		)
	}
	if err := preflight.Err(checks); err != nil {
		marker := stage.ErrPersistence
		for _, c := range preflight.Failed(checks) {
			if c.Name == "Input file" {
				marker = stage.ErrInput
				break
			}
		}
		return stage.Wrap(marker, "preflight", "checks", "readiness checks failed", err)
	}
	return nil
}

func (r *Runner) delimiter() rune {
	d, _ := utf8.DecodeRuneInString(r.cfg.Input.Delimiter)
	if d == utf8.RuneError {
		return ','
	}
	return d
}

func (r *Runner) resolveRoles(ctx context.Context, state *State) error {
	logger := logging.WithContext(ctx, r.logger)
	roles, discovered, err := r.lookupRoles()
	if err != nil {
		return err
	}
	if discovered {
		logger.Info("feature roles discovered from header",
			logging.String("anchor", roles.Anchor),
			logging.Any("reducers", roles.Reducers),
			logging.Any("identifiers", roles.Identifiers),
		)
	}
	if len(roles.Reducers) == 0 {
		logging.WarnWithContext(logger, "no reducers configured; only anchor matches are possible", "roles_no_reducers",
			logging.Alert("anchor_only"),
			logging.String(logging.FieldErrorHint, "add reducer features to [features] reducers"),
			logging.String(logging.FieldImpact, "events without an anchor hit always create a new identity"),
		)
	}
	state.Roles = roles
	return nil
}

// lookupRoles returns the configured roles, or the roles discovered from the
// input header when discovery is enabled or nothing is configured.
func (r *Runner) lookupRoles() (engine.Roles, bool, error) {
	features := r.cfg.Features
	if features.Discover || !r.cfg.RolesConfigured() {
		header, err := ingest.ReadHeader(r.cfg.Input.Path, r.delimiter())
		if err != nil {
			return engine.Roles{}, true, stage.Wrap(stage.ErrInput, "roles", "read header", "cannot read input header", err)
		}
		roles, err := ingest.DiscoverRoles(header)
		if err != nil {
			return engine.Roles{}, true, stage.Wrap(stage.ErrConfiguration, "roles", "discover", "input columns do not define usable roles", err)
		}
		return roles, true, nil
	}
	roles := engine.Roles{
		Anchor:      features.Anchor,
		Reducers:    features.Reducers,
		Identifiers: features.Identifiers,
	}
	if err := roles.Validate(); err != nil {
		return engine.Roles{}, false, stage.Wrap(stage.ErrConfiguration, "roles", "validate", "feature roles are invalid", err)
	}
	return roles, false, nil
}

// checkPreflight runs the readiness checks without creating directories.
func (r *Runner) checkPreflight(ctx context.Context) stage.Health {
	if err := preflight.Err(preflight.RunAll(ctx, r.cfg)); err != nil {
		return stage.Unhealthy("", err.Error())
	}
	return stage.Healthy("")
}

func (r *Runner) checkRoles(context.Context) stage.Health {
	roles, _, err := r.lookupRoles()
	if err != nil {
		return stage.Unhealthy("", err.Error())
	}
	if len(roles.Reducers) == 0 {
		return stage.Health{Ready: true, Detail: "no reducers; only anchor matches are possible"}
	}
	return stage.Healthy("")
}

func (r *Runner) openResults(ctx context.Context, state *State) error {
	store, err := results.Open(ctx, r.cfg.Output.ResultsDB, true)
	if err != nil {
		return stage.Wrap(stage.ErrPersistence, "open", "results database", "cannot open results database", err)
	}
	run := &results.Run{
		ID:           state.RunID,
		InputPath:    r.cfg.Input.Path,
		Anchor:       state.Roles.Anchor,
		Reducers:     state.Roles.Reducers,
		Identifiers:  state.Roles.Identifiers,
		Passthrough:  r.cfg.Input.PassthroughColumns,
		AnchorPolicy: r.cfg.Engine.AnchorPolicy,
		IDScheme:     r.cfg.Engine.IDScheme,
		StartedAt:    state.StartedAt,
	}
	if err := store.BeginRun(ctx, run); err != nil {
		_ = store.Close()
		return stage.Wrap(stage.ErrPersistence, "open", "begin run", "cannot record run", err)
	}
	state.store = store
	return nil
}

func (r *Runner) load(ctx context.Context, state *State) error {
	var optional []string
	if r.cfg.Input.TimestampColumn != "" {
		optional = append(optional, r.cfg.Input.TimestampColumn)
	}
	optional = append(optional, r.cfg.Input.PassthroughColumns...)

	batch, err := ingest.ReadFile(ctx, r.cfg.Input.Path, ingest.Options{
		Delimiter:       r.delimiter(),
		Required:        state.Roles.Features(),
		Optional:        optional,
		TimestampColumn: r.cfg.Input.TimestampColumn,
		Logger:          logging.WithContext(ctx, r.logger),
	})
	if err != nil {
		marker := stage.ErrInput
		if errors.Is(err, ingest.ErrMissingColumn) {
			marker = stage.ErrValidation
		}
		return stage.Wrap(marker, "load", "read input", "cannot load events", err)
	}
	state.Batch = batch
	logging.WithContext(ctx, r.logger).Info("input loaded",
		logging.Int("rows", batch.Len()),
		logging.Int("columns", len(batch.Header)),
		logging.Bool("sorted", batch.Sorted),
	)
	return nil
}

func (r *Runner) profile(ctx context.Context, state *State) error {
	if !r.cfg.Analysis.Enabled {
		return nil
	}
	return r.forceProfile(ctx, state)
}

func (r *Runner) forceProfile(ctx context.Context, state *State) error {
	features := state.Roles.Features()
	columns := make(map[string][]featurecode.Raw, len(features))
	for _, f := range features {
		if col, ok := state.Batch.Column(f); ok {
			columns[f] = col
		}
	}
	report, err := datasetstats.Analyze(ctx, columns, features, r.cfg.Analysis.TopValues)
	if err != nil {
		return stage.Wrap(stage.ErrInternal, "profile", "analyze", "dataset profiling interrupted", err)
	}
	state.Profile = &report
	logging.WithContext(ctx, r.logger).Info("dataset profiled",
		logging.Int("features", len(report.Features)),
		logging.Any("high_discriminative", report.ByRecommendation(datasetstats.HighDiscriminative)),
		logging.Any("empty", report.Empty),
	)
	return nil
}

func (r *Runner) encode(ctx context.Context, state *State) error {
	features := state.Roles.Features()
	switch r.cfg.Engine.Encoding {
	case "lazy":
		state.encoder = newLazyEncoder(state.Batch, features)
		return nil
	default:
		enc, err := newBatchEncoder(ctx, state.Batch, features)
		if err != nil {
			return stage.Wrap(stage.ErrInternal, "encode", "dictionaries", "feature encoding interrupted", err)
		}
		state.encoder = enc
		logger := logging.WithContext(ctx, r.logger)
		for _, f := range features {
			logger.Debug("feature encoded", logging.String("feature", f), logging.Int("cardinality", enc.Cardinality(f)))
		}
		return nil
	}
}

func (r *Runner) resolve(ctx context.Context, state *State) error {
	logger := logging.WithContext(ctx, r.logger)

	policy, err := engine.ParseAnchorPolicy(r.cfg.Engine.AnchorPolicy)
	if err != nil {
		return stage.Wrap(stage.ErrConfiguration, "resolve", "anchor policy", "invalid engine.anchor_policy", err)
	}
	keys, err := engine.KeyScheme(r.cfg.Engine.IDScheme)
	if err != nil {
		return stage.Wrap(stage.ErrConfiguration, "resolve", "id scheme", "invalid engine.id_scheme", err)
	}
	opts := []engine.Option{engine.WithAnchorPolicy(policy), engine.WithKeys(keys)}
	tracer := newTraceMatcher(state.Roles.Anchor, r.cfg.Engine.TraceAnchorValue)
	if tracer.on {
		opts = append(opts, engine.WithTrace(traceFunc(state, logger)))
		logger.Info("tracing enabled", logging.String("anchor_value", r.cfg.Engine.TraceAnchorValue))
	}
	eng, err := engine.New(state.Roles, opts...)
	if err != nil {
		return stage.Wrap(stage.ErrConfiguration, "resolve", "engine", "cannot build resolver", err)
	}
	state.engine = eng

	total := state.Batch.Len()
	state.Assignments = make([]engine.Assignment, 0, total)
	sampler := logging.NewProgressSampler(progressBucketSize)
	for row := 0; row < total; row++ {
		if row%cancelCheckRows == 0 {
			if err := ctx.Err(); err != nil {
				return stage.Wrap(stage.ErrInternal, "resolve", "rows", fmt.Sprintf("interrupted at row %d", row), err)
			}
		}
		state.row = row
		state.traced = tracer.matches(state, row)
		a := eng.Resolve(state.encoder.Signature(row))
		state.Assignments = append(state.Assignments, a)
		state.Tally.Add(a.Key, a.IsNew, a.Feature)
		r.metrics.ObserveAssignment(a.IsNew, a.Feature)

		if sampler.ShouldLogRows(row+1, total, "resolve") {
			logger.Info("resolve progress",
				logging.String(logging.FieldEventType, "progress"),
				logging.Int("rows", row+1),
				logging.Int("total", total),
				logging.Int("identities", eng.Len()),
				logging.Float64("percent", logging.Percent(row+1, total)),
			)
		}
	}
	state.traced = false
	state.Analysis = eng.Analysis()
	r.metrics.SetIdentities(eng.Len())
	return nil
}

func (r *Runner) persist(ctx context.Context, state *State) error {
	passthrough := make([]string, 0, len(r.cfg.Input.PassthroughColumns))
	for _, col := range r.cfg.Input.PassthroughColumns {
		if _, ok := state.Batch.Index(col); ok {
			passthrough = append(passthrough, col)
		}
	}

	chunk := make([]results.Assignment, 0, min(persistBatchSize, len(state.Assignments)))
	flush := func() error {
		if err := state.store.AppendAssignments(ctx, state.RunID, chunk); err != nil {
			return stage.Wrap(stage.ErrPersistence, "persist", "assignments", "cannot store assignments", err)
		}
		chunk = chunk[:0]
		return nil
	}
	for seq, a := range state.Assignments {
		rec := results.Assignment{
			Seq:            seq,
			SourceRow:      state.Batch.Source[seq],
			IdentityKey:    a.Key,
			IsNew:          a.IsNew,
			MatchedFeature: a.Feature,
		}
		for _, col := range passthrough {
			if raw := state.Batch.Value(seq, col); raw.Valid {
				if rec.Passthrough == nil {
					rec.Passthrough = make(map[string]string, len(passthrough))
				}
				rec.Passthrough[col] = raw.Value
			}
		}
		chunk = append(chunk, rec)
		if len(chunk) == persistBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	logging.WithContext(ctx, r.logger).Info("assignments stored",
		logging.Int("rows", len(state.Assignments)),
		logging.String("path", state.store.Path()),
	)
	return nil
}
