package results

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// DatabaseHealth captures diagnostic information about the results database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	Runs             int
	Assignments      int
	IntegrityCheck   bool
	Error            string
}

// CheckHealth returns diagnostic information about the results database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat results database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("results database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("results database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping results database: %w", err)
	}
	health.DatabaseReadable = true

	queries := []struct {
		query string
		dst   *int
	}{
		{"SELECT version FROM schema_version LIMIT 1", &health.SchemaVersion},
		{"SELECT COUNT(*) FROM runs", &health.Runs},
		{"SELECT COUNT(*) FROM assignments", &health.Assignments},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(connCtx, q.query).Scan(q.dst); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("query %q: %w", q.query, err)
		}
	}

	var integrityResult string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
