package assign

import (
	"context"
	"testing"

	"github.com/rzbill/worksets/internal/storage"
	"github.com/rzbill/worksets/internal/storage/memstore"
	"github.com/rzbill/worksets/pkg/log"
)

func openTestLedger(t *testing.T) (*Ledger, *Records, storage.Store, *captureMetrics) {
	t.Helper()
	store := memstore.New()
	records := NewRecords(store)
	collector := newCaptureMetrics()
	return NewLedger(store, records, 3, log.NewNop(), collector), records, store, collector
}

func TestLedgerCountsRegeneratesWhenAbsent(t *testing.T) {
	ctx := context.Background()
	ledger, records, _, collector := openTestLedger(t)

	if err := records.Save(ctx, "alice", []TaskRow{
		{Workset: "workset_001", Status: StatusCompleted},
		{Workset: "workset_002", Status: StatusInProgress},
	}); err != nil {
		t.Fatalf("save alice: %v", err)
	}
	if err := records.Save(ctx, "bob", []TaskRow{
		{Workset: "workset_001", Status: StatusNotStarted},
	}); err != nil {
		t.Fatalf("save bob: %v", err)
	}

	usage, err := ledger.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if usage["workset_001"] != 2 || usage["workset_002"] != 1 {
		t.Errorf("unexpected usage: %v", usage)
	}
	if collector.rebuildCount() != 1 {
		t.Errorf("expected one rebuild, got %d", collector.rebuildCount())
	}

	// A second read serves the persisted object without rescanning.
	if _, err := ledger.Counts(ctx); err != nil {
		t.Fatalf("second counts: %v", err)
	}
	if collector.rebuildCount() != 1 {
		t.Errorf("second read triggered a rebuild")
	}
}

func TestLedgerRegenerateIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger, records, _, _ := openTestLedger(t)

	if err := records.Save(ctx, "alice", []TaskRow{
		{Workset: "workset_005", Status: StatusCompleted},
		{Workset: "workset_005", Status: StatusNotStarted}, // duplicate rows count once
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	first, err := ledger.Regenerate(ctx)
	if err != nil {
		t.Fatalf("first regenerate: %v", err)
	}
	second, err := ledger.Regenerate(ctx)
	if err != nil {
		t.Fatalf("second regenerate: %v", err)
	}
	if first["workset_005"] != 1 || second["workset_005"] != 1 {
		t.Errorf("duplicate rows inflated usage: first=%v second=%v", first, second)
	}
}

func TestLedgerIncrementRefusesCap(t *testing.T) {
	ctx := context.Background()
	ledger, records, _, _ := openTestLedger(t)

	for _, w := range []string{"alice", "bob", "carol"} {
		if err := records.Save(ctx, w, []TaskRow{{Workset: "workset_001", Status: StatusNotStarted}}); err != nil {
			t.Fatalf("save %s: %v", w, err)
		}
	}
	if _, err := ledger.Regenerate(ctx); err != nil {
		t.Fatalf("regenerate: %v", err)
	}

	if err := ledger.Increment(ctx, "workset_001", 3, 1); err == nil {
		t.Fatal("expected increment past cap to be refused")
	}
	usage, _ := ledger.Counts(ctx)
	if usage["workset_001"] != 3 {
		t.Errorf("refused increment mutated the ledger: %v", usage)
	}
}

func TestLedgerIncrementDriftRebuilds(t *testing.T) {
	ctx := context.Background()
	ledger, records, store, collector := openTestLedger(t)

	if err := records.Save(ctx, "alice", []TaskRow{{Workset: "workset_001", Status: StatusCompleted}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Persist a ledger claiming 3 holders while ground truth says 1.
	if err := store.Put(ctx, ledgerKey, []byte(`{"workset_usage":{"workset_001":3}}`)); err != nil {
		t.Fatalf("seed drifted ledger: %v", err)
	}

	if err := ledger.Increment(ctx, "workset_001", 1, 1); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if collector.rebuildCount() != 1 {
		t.Errorf("drift did not trigger a rebuild")
	}
	usage, _ := ledger.Counts(ctx)
	if usage["workset_001"] != 2 {
		t.Errorf("usage = %d, want 2 (rebuilt 1 + increment)", usage["workset_001"])
	}
}

func TestLedgerIncrementToleratesSmallDrift(t *testing.T) {
	ctx := context.Background()
	ledger, _, store, collector := openTestLedger(t)

	if err := store.Put(ctx, ledgerKey, []byte(`{"workset_usage":{"workset_001":1}}`)); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	// Persisted 1 vs expected 0 is within the default threshold.
	if err := ledger.Increment(ctx, "workset_001", 0, 1); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if collector.rebuildCount() != 0 {
		t.Errorf("tolerated drift triggered a rebuild")
	}
	usage, _ := ledger.Counts(ctx)
	if usage["workset_001"] != 2 {
		t.Errorf("usage = %d, want 2", usage["workset_001"])
	}
}

func TestLedgerDecrement(t *testing.T) {
	ctx := context.Background()
	ledger, _, store, _ := openTestLedger(t)

	if err := store.Put(ctx, ledgerKey, []byte(`{"workset_usage":{"workset_001":1,"workset_002":2}}`)); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	if err := ledger.Decrement(ctx, "workset_001"); err != nil {
		t.Fatalf("decrement to zero: %v", err)
	}
	if err := ledger.Decrement(ctx, "workset_002"); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if err := ledger.Decrement(ctx, "workset_009"); err != nil {
		t.Fatalf("decrement unknown: %v", err)
	}

	usage, _ := ledger.Counts(ctx)
	if _, ok := usage["workset_001"]; ok {
		t.Error("zeroed workset still present in ledger")
	}
	if usage["workset_002"] != 1 {
		t.Errorf("workset_002 = %d, want 1", usage["workset_002"])
	}
}

func TestLedgerSummarize(t *testing.T) {
	ctx := context.Background()
	ledger, _, store, _ := openTestLedger(t)

	if err := store.Put(ctx, ledgerKey, []byte(`{"workset_usage":{"workset_001":3,"workset_002":1}}`)); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	s, err := ledger.Summarize(ctx, 4)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.Saturated != 1 || s.PartiallyUsed != 1 || s.Unused != 2 {
		t.Errorf("unexpected summary: %+v", s)
	}
}
