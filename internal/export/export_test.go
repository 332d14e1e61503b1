package export

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/core"
)

func newTestExporter(t *testing.T) *Exporter {
	t.Helper()
	e, err := NewExporter(filepath.Join(t.TempDir(), "snapshot.db"), nil)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func sampleData() ([]core.Category, []core.Transaction) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	cats := []core.Category{
		{ID: "cat-1", Name: "Salary", Type: core.Income, CreatedAt: now},
		{ID: "cat-3", Name: "Groceries", Type: core.Expense, CreatedAt: now},
	}
	txs := []core.Transaction{
		{
			ID: "tx-1", CategoryID: "cat-3", CategoryName: "Groceries",
			CategoryType: core.Expense, AmountCents: 2599,
			Description: "Weekly groceries", Date: core.NewDate(2026, 8, 15),
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "tx-2", CategoryID: "cat-1", CategoryName: "Salary",
			CategoryType: core.Income, AmountCents: 500000,
			Description: "August salary", Date: core.NewDate(2026, 8, 1),
			CreatedAt: now, UpdatedAt: now,
		},
	}
	return cats, txs
}

func TestSnapshotRoundTrip(t *testing.T) {
	e := newTestExporter(t)
	ctx := context.Background()
	cats, txs := sampleData()

	id, err := e.Snapshot(ctx, cats, txs)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero snapshot id")
	}

	got, err := e.Transactions(ctx, id)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(got))
	}
	// newest date first
	if got[0].ID != "tx-1" || got[1].ID != "tx-2" {
		t.Fatalf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].AmountCents != 2599 || got[0].CategoryType != core.Expense {
		t.Fatalf("unexpected transaction: %+v", got[0])
	}
	if got[0].Date.String() != "2026-08-15" {
		t.Fatalf("unexpected date: %s", got[0].Date)
	}
}

func TestLatestSnapshot(t *testing.T) {
	e := newTestExporter(t)
	ctx := context.Background()
	cats, txs := sampleData()

	first, err := e.Snapshot(ctx, cats, txs)
	if err != nil {
		t.Fatalf("first Snapshot: %v", err)
	}
	second, err := e.Snapshot(ctx, cats, nil)
	if err != nil {
		t.Fatalf("second Snapshot: %v", err)
	}
	if second <= first {
		t.Fatalf("expected monotonic ids, got %d then %d", first, second)
	}

	latest, takenAt, err := e.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if latest != second {
		t.Fatalf("LatestSnapshot = %d, want %d", latest, second)
	}
	if takenAt.IsZero() {
		t.Fatal("expected non-zero timestamp")
	}

	got, err := e.Transactions(ctx, second)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty snapshot, got %d rows", len(got))
	}
}
