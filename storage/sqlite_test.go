package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/richinex/fastctx/model"
)

func newTestLog(t *testing.T) *SearchLog {
	t.Helper()
	log, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create search log: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

func TestSearchLogReportAndRecent(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	entries := []model.SearchLog{
		{Query: "first", Status: model.StatusSuccess, DurationMs: 100, Provider: "windsurf", CreatedAt: base},
		{Query: "second", Status: model.StatusTimeout, ErrorMsg: "max turns", DurationMs: 900, Provider: "windsurf", CreatedAt: base.Add(time.Minute)},
		{Query: "third", Status: model.StatusError, ErrorMsg: "HTTP 503", DurationMs: 50, Provider: "windsurf", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := log.Report(ctx, e); err != nil {
			t.Fatalf("Report failed: %v", err)
		}
	}

	recent, err := log.Recent(ctx, "", 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].Query != "third" || recent[1].Query != "second" {
		t.Errorf("unexpected order: %q, %q", recent[0].Query, recent[1].Query)
	}
	if recent[1].ErrorMsg != "max turns" {
		t.Errorf("expected error_msg 'max turns', got %q", recent[1].ErrorMsg)
	}
	if !recent[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("unexpected created_at %v", recent[0].CreatedAt)
	}
}

func TestSearchLogRecentByStatus(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	for _, s := range []model.SearchStatus{model.StatusSuccess, model.StatusError, model.StatusSuccess} {
		if err := log.Report(ctx, model.SearchLog{Query: "q", Status: s, Provider: "windsurf"}); err != nil {
			t.Fatalf("Report failed: %v", err)
		}
	}

	errs, err := log.Recent(ctx, model.StatusError, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(errs) != 1 {
		t.Errorf("expected 1 error entry, got %d", len(errs))
	}
}

func TestSearchLogRecentEmpty(t *testing.T) {
	log := newTestLog(t)

	recent, err := log.Recent(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if recent == nil || len(recent) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", recent)
	}
}

func TestSearchLogStats(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	for _, e := range []model.SearchLog{
		{Query: "a", Status: model.StatusSuccess, DurationMs: 100},
		{Query: "b", Status: model.StatusSuccess, DurationMs: 300},
		{Query: "c", Status: model.StatusTimeout, DurationMs: 1000},
	} {
		if err := log.Report(ctx, e); err != nil {
			t.Fatalf("Report failed: %v", err)
		}
	}

	stats, err := log.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	want := []StatusCount{
		{Status: model.StatusSuccess, Count: 2, AvgDurationMs: 200},
		{Status: model.StatusTimeout, Count: 1, AvgDurationMs: 1000},
	}
	if len(stats) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(stats))
	}
	for i := range want {
		if stats[i] != want[i] {
			t.Errorf("row %d: expected %+v, got %+v", i, want[i], stats[i])
		}
	}
}

func TestSearchLogPrune(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	now := time.Now()

	_ = log.Report(ctx, model.SearchLog{Query: "old", Status: model.StatusSuccess, CreatedAt: now.Add(-48 * time.Hour)})
	_ = log.Report(ctx, model.SearchLog{Query: "new", Status: model.StatusSuccess, CreatedAt: now})

	n, err := log.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned row, got %d", n)
	}

	recent, _ := log.Recent(ctx, "", 10)
	if len(recent) != 1 || recent[0].Query != "new" {
		t.Errorf("unexpected remaining entries: %+v", recent)
	}
}

func TestOpenSqliteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "searches.db")
	log, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("OpenSqlite failed: %v", err)
	}
	defer log.Close()

	if err := log.Report(context.Background(), model.SearchLog{Query: "q", Status: model.StatusSuccess}); err != nil {
		t.Fatalf("Report failed: %v", err)
	}
}
