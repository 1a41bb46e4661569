package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Summary recomputes a run's aggregate view from its stored assignments.
func (s *Store) Summary(ctx context.Context, runID string) (Summary, error) {
	var rows, newRows, unique int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(SUM(is_new), 0), COUNT(DISTINCT identity_key)
         FROM assignments WHERE run_id = ?`, runID,
	).Scan(&rows, &newRows, &unique)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize run: %w", err)
	}

	result, err := s.db.QueryContext(ctx,
		`SELECT matched_feature, COUNT(1) FROM assignments WHERE run_id = ? GROUP BY matched_feature`, runID)
	if err != nil {
		return Summary{}, fmt.Errorf("feature breakdown: %w", err)
	}
	defer result.Close()

	features := make(map[string]int)
	for result.Next() {
		var (
			feature string
			count   int
		)
		if err := result.Scan(&feature, &count); err != nil {
			return Summary{}, err
		}
		features[feature] = count
	}
	if err := result.Err(); err != nil {
		return Summary{}, err
	}
	return buildSummary(rows, newRows, unique, features), nil
}

// Tallies returns the per-feature counts stored when the run finished.
func (s *Store) Tallies(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT feature, matches FROM feature_tallies WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("read tallies: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			feature string
			count   int
		)
		if err := rows.Scan(&feature, &count); err != nil {
			return nil, err
		}
		out[feature] = count
	}
	return out, rows.Err()
}

// Collisions lists identities whose events carry more than one distinct value
// of the passthrough column. Events without a value are ignored. Results are
// ordered by distinct count descending; a non-positive limit returns all.
func (s *Store) Collisions(ctx context.Context, runID, column string, limit int) ([]Collision, error) {
	column = strings.TrimSpace(column)
	if column == "" {
		return nil, fmt.Errorf("collision column is required")
	}
	path := jsonPath(column)
	query := `SELECT identity_key,
                 COUNT(DISTINCT json_extract(passthrough_json, ?)) AS distinct_values,
                 COUNT(1),
                 json_group_array(DISTINCT json_extract(passthrough_json, ?))
              FROM assignments
              WHERE run_id = ? AND json_extract(passthrough_json, ?) IS NOT NULL
              GROUP BY identity_key
              HAVING distinct_values > 1
              ORDER BY distinct_values DESC, identity_key`
	args := []any{path, path, runID, path}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query collisions: %w", err)
	}
	defer rows.Close()

	var out []Collision
	for rows.Next() {
		var (
			c      Collision
			values string
		)
		if err := rows.Scan(&c.IdentityKey, &c.DistinctValues, &c.Events, &values); err != nil {
			return nil, fmt.Errorf("scan collision: %w", err)
		}
		if err := json.Unmarshal([]byte(values), &c.Values); err != nil {
			return nil, fmt.Errorf("decode collision values: %w", err)
		}
		slices.Sort(c.Values)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Assignments streams a run's assignments in processing order. fn must not
// call back into the Store.
func (s *Store) Assignments(ctx context.Context, runID string, fn func(Assignment) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, source_row, identity_key, is_new, matched_feature, passthrough_json
         FROM assignments WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a           Assignment
			isNew       int
			passthrough sql.NullString
		)
		if err := rows.Scan(&a.Seq, &a.SourceRow, &a.IdentityKey, &isNew, &a.MatchedFeature, &passthrough); err != nil {
			return fmt.Errorf("scan assignment: %w", err)
		}
		a.IsNew = isNew != 0
		if passthrough.Valid && passthrough.String != "" {
			if err := json.Unmarshal([]byte(passthrough.String), &a.Passthrough); err != nil {
				return fmt.Errorf("decode passthrough: %w", err)
			}
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	return rows.Err()
}

// jsonPath quotes a column name as a single JSON object key so names with
// dots address one member.
func jsonPath(column string) string {
	return `$."` + strings.ReplaceAll(column, `"`, `\"`) + `"`
}
