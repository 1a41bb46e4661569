package testsupport

import (
	"context"
	"testing"

	"fpmatch/internal/config"
	"fpmatch/internal/results"
)

// MustOpenResults opens the config's results database for tests and
// registers cleanup.
func MustOpenResults(t testing.TB, cfg *config.Config) *results.Store {
	t.Helper()

	store, err := results.Open(context.Background(), cfg.Output.ResultsDB, false)
	if err != nil {
		t.Fatalf("results.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
