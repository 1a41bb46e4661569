package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

const runColumns = "id, input_path, status, anchor_feature, reducers_json, identifiers_json, passthrough_json, anchor_policy, id_scheme, total_rows, new_identities, unique_identities, error_message, started_at, finished_at"

// BeginRun records a new run in the running state.
func (s *Store) BeginRun(ctx context.Context, run *Run) error {
	if run == nil || strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = StatusRunning

	reducers, err := marshalList(run.Reducers)
	if err != nil {
		return err
	}
	identifiers, err := marshalList(run.Identifiers)
	if err != nil {
		return err
	}
	passthrough, err := marshalList(run.Passthrough)
	if err != nil {
		return err
	}

	if err := s.execWithRetry(ctx,
		`INSERT INTO runs (
            id, input_path, status, anchor_feature, reducers_json, identifiers_json,
            passthrough_json, anchor_policy, id_scheme, started_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.InputPath,
		run.Status,
		run.Anchor,
		reducers,
		identifiers,
		passthrough,
		run.AnchorPolicy,
		run.IDScheme,
		formatTime(run.StartedAt),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// AppendAssignments inserts a batch of assignments in one transaction.
func (s *Store) AppendAssignments(ctx context.Context, runID string, batch []Assignment) error {
	if len(batch) == 0 {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin assignments tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO assignments (
                run_id, seq, source_row, identity_key, is_new, matched_feature, passthrough_json
            ) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare assignment insert: %w", err)
		}
		defer stmt.Close()

		for _, a := range batch {
			var passthrough any
			if len(a.Passthrough) > 0 {
				data, err := json.Marshal(a.Passthrough)
				if err != nil {
					return fmt.Errorf("marshal passthrough: %w", err)
				}
				passthrough = string(data)
			}
			if _, err := stmt.ExecContext(ctx, runID, a.Seq, a.SourceRow, a.IdentityKey, boolToInt(a.IsNew), a.MatchedFeature, passthrough); err != nil {
				return fmt.Errorf("insert assignment %d: %w", a.Seq, err)
			}
		}
		return tx.Commit()
	})
}

// FinishRun stores the final counts and per-feature tallies of a run. A
// non-nil runErr marks the run failed.
func (s *Store) FinishRun(ctx context.Context, runID string, summary Summary, runErr error) error {
	status := StatusCompleted
	var message string
	if runErr != nil {
		status = StatusFailed
		message = runErr.Error()
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin finish tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx,
			`UPDATE runs SET status = ?, total_rows = ?, new_identities = ?, unique_identities = ?,
                error_message = ?, finished_at = ? WHERE id = ?`,
			status,
			summary.TotalRows,
			summary.NewIdentities,
			summary.UniqueIdentities,
			nullableString(message),
			formatTime(time.Now()),
			runID,
		)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		for _, fc := range summary.ByFeature {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO feature_tallies (run_id, feature, matches) VALUES (?, ?, ?)`,
				runID, fc.Feature, fc.Count,
			); err != nil {
				return fmt.Errorf("insert tally %s: %w", fc.Feature, err)
			}
		}
		return tx.Commit()
	})
}

// GetRun fetches a run by id. An empty id selects the most recent run.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var row *sql.Row
	if strings.TrimSpace(id) == "" {
		row = s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1")
	} else {
		row = s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	}
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		if id == "" {
			return nil, fmt.Errorf("%w: no runs recorded", ErrRunNotFound)
		}
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns
// every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, rowid DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run, its assignments and its feature tallies. It
// returns ErrRunNotFound when id does not exist.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
		if err != nil {
			return err
		}
		removed, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Prune keeps the newest keep runs and deletes the rest. It returns the
// number of runs removed.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM runs WHERE id NOT IN (
                SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
            )`, keep)
		if err != nil {
			return err
		}
		removed, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return int(removed), nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run          Run
		status       string
		reducers     string
		identifiers  string
		passthrough  string
		errorMessage sql.NullString
		startedRaw   string
		finishedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.InputPath,
		&status,
		&run.Anchor,
		&reducers,
		&identifiers,
		&passthrough,
		&run.AnchorPolicy,
		&run.IDScheme,
		&run.TotalRows,
		&run.NewIdentities,
		&run.UniqueIdentities,
		&errorMessage,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	run.Status = Status(status)
	run.ErrorMessage = errorMessage.String
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishedRaw.String)
	for _, field := range []struct {
		raw string
		dst *[]string
	}{
		{reducers, &run.Reducers},
		{identifiers, &run.Identifiers},
		{passthrough, &run.Passthrough},
	} {
		if err := json.Unmarshal([]byte(field.raw), field.dst); err != nil {
			return nil, fmt.Errorf("decode run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}

func marshalList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshal list: %w", err)
	}
	return string(data), nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
