package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/codmatch/backend/internal/domain"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger, err := Open(filepath.Join(t.TempDir(), "ledger", "codmatch-test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func TestLedgerRunLifecycle(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return base }

	runID, err := ledger.StartRun(ctx, "invoice", "dados/nf/excel/nf*.xlsx")
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	matches := []domain.MatchResult{
		{Record: domain.NoisyRecord{Name: "SAB LIQ ROSA", Source: "nf1.xlsx"}, Candidate: "SABONETE LIQUIDO ROSA", Score: 100, Identifier: "NATBRA-100"},
		{Record: domain.NoisyRecord{Name: "KAIAK DES COL"}, Candidate: "KAIAK COLONIA", Score: 81},
	}
	for _, m := range matches {
		if err := ledger.RecordMatch(ctx, runID, m); err != nil {
			t.Fatalf("RecordMatch failed: %v", err)
		}
	}

	ledger.now = func() time.Time { return base.Add(time.Minute) }
	summary := domain.RunSummary{Output: "dados/out.xlsx", Records: 3, Accepted: 2, Filled: 1}
	if err := ledger.FinishRun(ctx, runID, summary); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	runs, err := ledger.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.Pipeline != "invoice" || run.Output != "dados/out.xlsx" || run.Status != "done" {
		t.Errorf("unexpected run: %+v", run)
	}
	if run.Records != 3 || run.Accepted != 2 || run.Filled != 1 {
		t.Errorf("unexpected counters: %+v", run)
	}
	if !run.FinishedAt.Valid || !run.FinishedAt.Time.Equal(base.Add(time.Minute)) {
		t.Errorf("finished_at = %+v, want %v", run.FinishedAt, base.Add(time.Minute))
	}

	count, err := ledger.CountMatches(ctx, runID)
	if err != nil {
		t.Fatalf("CountMatches failed: %v", err)
	}
	if count != 2 {
		t.Errorf("CountMatches = %d, want 2", count)
	}
}

func TestLedgerRecentRunsOrder(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	for _, p := range []string{"invoice", "magazine", "retail"} {
		if _, err := ledger.StartRun(ctx, p, ""); err != nil {
			t.Fatalf("StartRun failed: %v", err)
		}
	}

	runs, err := ledger.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].Pipeline != "retail" || runs[1].Pipeline != "magazine" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if runs[0].Status != "running" || runs[0].FinishedAt.Valid {
		t.Errorf("unfinished run should be running with no finished_at: %+v", runs[0])
	}
}

func TestLedgerFinishUnknownRun(t *testing.T) {
	ledger := newTestLedger(t)

	err := ledger.FinishRun(context.Background(), 42, domain.RunSummary{Status: "failed"})
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestLedgerImplementsRecorder(t *testing.T) {
	var _ domain.RunRecorder = newTestLedger(t)
}
