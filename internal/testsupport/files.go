package testsupport

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

// EventsHeader is the column layout of the event fixtures.
var EventsHeader = []string{
	"timestamp",
	"deviceId",
	"anchor_android_id",
	"reducer_sensor_hash",
	"matcher_serial",
	"matcher_fallback_ad_id",
}

// DriftEvents is a small time-ordered history, written out of order. The
// first three rows share one device; the last row is unrelated.
//
//	t1: A1 R1 S1 -      new identity
//	t2: A2 R1 S1 -      serial match, anchor drifts to A2
//	t3: A1 R1 -  F1     reducer holds, serial absent, fallback absent in store
//	t4: A9 R9 S9 F9     new identity
var DriftEvents = [][]string{
	{"2024-01-04T00:00:00Z", "dev-9", "A9", "R9", "S9", "F9"},
	{"2024-01-01T00:00:00Z", "dev-1", "A1", "R1", "S1", ""},
	{"2024-01-03T00:00:00Z", "dev-2", "A1", "R1", "", "F1"},
	{"2024-01-02T00:00:00Z", "dev-1", "A2", "R1", "S1", "null"},
}

// WriteCSV writes header and rows to path, creating parent directories.
func WriteCSV(t testing.TB, path string, header []string, rows [][]string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		t.Fatalf("write header %s: %v", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("write rows %s: %v", path, err)
	}
}

// ReadCSV reads every record of an uncompressed CSV file.
func ReadCSV(t testing.TB, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return records
}
