package workflow

import (
	"context"
	"encoding/csv"
	"strconv"

	"fpmatch/internal/ingest"
	"fpmatch/internal/logging"
	"fpmatch/internal/stage"
)

// Result columns appended to the exported CSV.
const (
	ColumnIdentity = "new_fingerprint"
	ColumnIsNew    = "is_new_fingerprint"
	ColumnFeature  = "match_at_feature"
)

func (r *Runner) export(ctx context.Context, state *State) error {
	path := r.cfg.Output.CSVPath
	if path == "" {
		return nil
	}
	if err := writeCSV(path, r.delimiter(), state); err != nil {
		return stage.Wrap(stage.ErrPersistence, "export", "csv", "cannot write results CSV", err)
	}
	logging.WithContext(ctx, r.logger).Info("results exported",
		logging.String("path", path),
		logging.Int("rows", len(state.Assignments)),
	)
	return nil
}

// writeCSV writes the loaded columns in processing order followed by the
// result columns. Missing values are written as empty fields.
func writeCSV(path string, delimiter rune, state *State) (err error) {
	out, err := ingest.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(out)
	w.Comma = delimiter
	header := append(append([]string{}, state.Batch.Header...), ColumnIdentity, ColumnIsNew, ColumnFeature)
	if err := w.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	width := len(state.Batch.Header)
	for i, a := range state.Assignments {
		for j, raw := range state.Batch.Rows[i] {
			if raw.Valid {
				record[j] = raw.Value
			} else {
				record[j] = ""
			}
		}
		record[width] = a.Key
		record[width+1] = strconv.FormatBool(a.IsNew)
		record[width+2] = a.Feature
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
