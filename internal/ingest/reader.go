package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"fpmatch/internal/featurecode"
	"fpmatch/internal/logging"
)

var (
	ErrEmptyInput    = errors.New("input has no header row")
	ErrMissingColumn = errors.New("required column missing from input")
	ErrDuplicateName = errors.New("duplicate column name in header")
)

const cancelCheckInterval = 4096

// Options controls which columns Read keeps and how rows are ordered.
type Options struct {
	Delimiter rune
	// Required columns must exist in the header.
	Required []string
	// Optional columns are kept when present and skipped with a warning
	// otherwise.
	Optional []string
	// TimestampColumn orders rows when set and present. Rows are compared as
	// strings; missing timestamps sort last and ties keep file order.
	TimestampColumn string
	Logger          *slog.Logger
}

// Batch is the loaded input: a header and rows of raw values aligned with it.
type Batch struct {
	Header []string
	Rows   [][]featurecode.Raw
	// Source holds the zero-based data-row position each row had in the file.
	Source []int
	// Sorted reports whether rows were reordered by timestamp.
	Sorted bool

	index map[string]int
}

// Len is the number of rows.
func (b *Batch) Len() int {
	return len(b.Rows)
}

// Index returns the position of column name in the header.
func (b *Batch) Index(name string) (int, bool) {
	i, ok := b.index[name]
	return i, ok
}

// Value returns the raw cell at row, column name.
func (b *Batch) Value(row int, name string) featurecode.Raw {
	i, ok := b.index[name]
	if !ok || row < 0 || row >= len(b.Rows) {
		return featurecode.Missing
	}
	return b.Rows[row][i]
}

// Column copies one column out of the batch.
func (b *Batch) Column(name string) ([]featurecode.Raw, bool) {
	i, ok := b.index[name]
	if !ok {
		return nil, false
	}
	out := make([]featurecode.Raw, len(b.Rows))
	for r, row := range b.Rows {
		out[r] = row[i]
	}
	return out, true
}

func newBatch(header []string) *Batch {
	b := &Batch{Header: header, index: make(map[string]int, len(header))}
	for i, name := range header {
		b.index[name] = i
	}
	return b
}

// ReadFile opens path (decompressing by extension) and reads it.
func ReadFile(ctx context.Context, path string, opts Options) (*Batch, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return Read(ctx, r, opts)
}

// Read parses delimited records from r. When neither Required nor Optional is
// set every column is kept.
func Read(ctx context.Context, r io.Reader, opts Options) (*Batch, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	cr := newCSVReader(r, opts.Delimiter)
	fileHeader, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	fileHeader = cleanHeader(fileHeader)

	positions, header, err := selectColumns(fileHeader, opts, logger)
	if err != nil {
		return nil, err
	}
	batch := newBatch(header)

	for n := 0; ; n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", n+1, err)
		}
		if len(record) > len(fileHeader) {
			return nil, fmt.Errorf("read row %d: %d fields, header has %d", n+1, len(record), len(fileHeader))
		}
		row := make([]featurecode.Raw, len(positions))
		for i, pos := range positions {
			row[i] = cell(record, pos)
		}
		batch.Rows = append(batch.Rows, row)
		batch.Source = append(batch.Source, n)
	}

	if opts.TimestampColumn != "" {
		if _, ok := batch.Index(opts.TimestampColumn); ok {
			sortByTimestamp(batch, opts.TimestampColumn)
			batch.Sorted = true
		} else {
			logging.WarnWithContext(logger, "timestamp column not found; using file order",
				"input_unordered",
				logging.String("column", opts.TimestampColumn),
				logging.String(logging.FieldErrorHint, "set input.timestamp_column or pre-sort the input by time"),
				logging.String(logging.FieldImpact, "identities depend on event order"),
			)
		}
	} else {
		logging.WarnWithContext(logger, "no timestamp column configured; using file order",
			"input_unordered",
			logging.String(logging.FieldErrorHint, "make sure the input is already sorted by time"),
			logging.String(logging.FieldImpact, "identities depend on event order"),
		)
	}

	logger.Debug("input loaded",
		logging.Int("rows", batch.Len()),
		logging.Int("columns", len(batch.Header)),
		logging.Bool("sorted", batch.Sorted),
	)
	return batch, nil
}

// ReadHeader returns the cleaned header row of path.
func ReadHeader(path string, delimiter rune) ([]string, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	header, err := newCSVReader(r, delimiter).Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return cleanHeader(header), nil
}

func newCSVReader(r io.Reader, delimiter rune) *csv.Reader {
	cr := csv.NewReader(r)
	if delimiter != 0 {
		cr.Comma = delimiter
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return cr
}

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		out[i] = strings.TrimSpace(name)
	}
	return out
}

// selectColumns maps kept columns to their file positions.
func selectColumns(fileHeader []string, opts Options, logger *slog.Logger) ([]int, []string, error) {
	lookup := make(map[string]int, len(fileHeader))
	for i, name := range fileHeader {
		if _, dup := lookup[name]; dup {
			return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		lookup[name] = i
	}

	if len(opts.Required) == 0 && len(opts.Optional) == 0 {
		positions := make([]int, len(fileHeader))
		for i := range fileHeader {
			positions[i] = i
		}
		return positions, slices.Clone(fileHeader), nil
	}

	var (
		positions []int
		header    []string
		seen      = map[string]struct{}{}
		missing   []string
	)
	add := func(name string) bool {
		if _, ok := seen[name]; ok {
			return true
		}
		pos, ok := lookup[name]
		if !ok {
			return false
		}
		seen[name] = struct{}{}
		positions = append(positions, pos)
		header = append(header, name)
		return true
	}
	for _, name := range opts.Required {
		if !add(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	for _, name := range opts.Optional {
		if !add(name) {
			logger.Warn("optional column missing from input; skipping",
				logging.String("column", name),
				logging.String(logging.FieldEventType, "column_missing"),
			)
		}
	}
	return positions, header, nil
}

// cell converts a CSV field. Empty and absent fields are missing values.
func cell(record []string, pos int) featurecode.Raw {
	if pos >= len(record) || record[pos] == "" {
		return featurecode.Missing
	}
	return featurecode.String(strings.Clone(record[pos]))
}

func sortByTimestamp(b *Batch, column string) {
	col, _ := b.Index(column)
	order := make([]int, len(b.Rows))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(x, y int) int {
		a, c := b.Rows[x][col], b.Rows[y][col]
		switch {
		case a.Valid && c.Valid:
			return strings.Compare(a.Value, c.Value)
		case a.Valid:
			return -1
		case c.Valid:
			return 1
		default:
			return 0
		}
	})
	rows := make([][]featurecode.Raw, len(order))
	source := make([]int, len(order))
	for i, j := range order {
		rows[i] = b.Rows[j]
		source[i] = b.Source[j]
	}
	b.Rows = rows
	b.Source = source
}
