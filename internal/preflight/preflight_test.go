package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"fpmatch/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckInputFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "events.csv")
	if err := os.WriteFile(good, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		path   string
		passed bool
		detail string
	}{
		{"ok", good, true, "B)"},
		{"unset", "", false, "not configured"},
		{"missing", filepath.Join(dir, "missing.csv"), false, "does not exist"},
		{"empty", empty, false, "empty file"},
		{"directory", dir, false, "not a regular file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckInputFile("Input", tt.path)
			if result.Passed != tt.passed {
				t.Fatalf("passed = %v, want %v (%s)", result.Passed, tt.passed, result.Detail)
			}
			if !strings.Contains(result.Detail, tt.detail) {
				t.Fatalf("detail %q missing %q", result.Detail, tt.detail)
			}
		})
	}
}

func TestCheckResultsLock(t *testing.T) {
	db := filepath.Join(t.TempDir(), "results.db")
	if result := CheckResultsLock(db); !result.Passed {
		t.Fatalf("expected free lock, got %s", result.Detail)
	}

	holder := flock.New(db + ".lock")
	if ok, err := holder.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer holder.Unlock()

	result := CheckResultsLock(db)
	if result.Passed || !strings.Contains(result.Detail, "held by another run") {
		t.Fatalf("expected held lock, got %+v", result)
	}
}

func TestRunAll(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Output.ResultsDB = filepath.Join(base, "data", "results.db")
	cfg.Output.CSVPath = filepath.Join(base, "out", "results.csv")
	cfg.Input.Path = filepath.Join(base, "events.csv")
	if err := os.WriteFile(cfg.Input.Path, []byte("a\n1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), &cfg)
	if err := Err(results); err == nil {
		t.Fatal("expected failures before directories exist")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results = RunAll(context.Background(), &cfg)
	if err := Err(results); err != nil {
		t.Fatalf("expected all checks to pass, got %v", err)
	}
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	if !strings.Contains(strings.Join(names, ","), "CSV output directory") {
		t.Fatalf("expected CSV output check, got %v", names)
	}
	if RunAll(context.Background(), nil) != nil {
		t.Fatal("expected nil results for nil config")
	}
}
