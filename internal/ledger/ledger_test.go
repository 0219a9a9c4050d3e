package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dbferry/dbferry/internal/descriptor"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult() *descriptor.Result {
	return &descriptor.Result{
		RunID:        "run-1",
		Started:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:     42 * time.Second,
		TotalRows:    100,
		SuccessCount: 2,
		FailedCount:  1,
		Tables: []descriptor.TableResult{
			{Table: "users", Status: descriptor.StatusSuccess, RowsCopied: 60, Duration: 10 * time.Second},
			{Table: "orders", Status: descriptor.StatusSuccess, RowsCopied: 40, Duration: 12 * time.Second},
			{Table: "logs", Status: descriptor.StatusFailed, Error: "copy batch: connection reset", Duration: 20 * time.Second},
		},
	}
}

func TestRecordAndListRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.RecordRun(ctx, "/etc/dbferry.toml", sampleResult()); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	r := runs[0]
	if r.RunID != "run-1" || r.TotalRows != 100 || r.FailedCount != 1 {
		t.Errorf("run summary = %+v", r)
	}
	if !r.StartedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("StartedAt = %v", r.StartedAt)
	}
}

func TestGetTableResults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.RecordRun(ctx, "/etc/dbferry.toml", sampleResult()); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	results, err := s.GetTableResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetTableResults: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d table results, want 3", len(results))
	}

	var failed *descriptor.TableResult
	for i := range results {
		if results[i].Table == "logs" {
			failed = &results[i]
		}
	}
	if failed == nil {
		t.Fatal("expected a result for table logs")
	}
	if failed.Status != descriptor.StatusFailed || failed.Error == "" {
		t.Errorf("logs result = %+v", failed)
	}
}

func TestListRunsRespectsLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r := sampleResult()
		r.RunID = r.RunID + string(rune('a'+i))
		r.Started = r.Started.Add(time.Duration(i) * time.Hour)
		if err := s.RecordRun(ctx, "cfg.toml", r); err != nil {
			t.Fatalf("RecordRun %d: %v", i, err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
}
