package assign

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rzbill/worksets/internal/storage"
	"github.com/rzbill/worksets/internal/storage/memstore"
	"github.com/rzbill/worksets/pkg/log"
)

func openTestLockManager(t *testing.T, opts LockOptions) (*LockManager, storage.Store, *captureMetrics) {
	t.Helper()
	if opts.SettleMin == 0 {
		opts.SettleMin = time.Millisecond
		opts.SettleMax = 2 * time.Millisecond
	}
	store := memstore.New()
	collector := newCaptureMetrics()
	return NewLockManager(store, opts, log.NewNop(), collector), store, collector
}

func putLockRecord(t *testing.T, store storage.Store, key string, rec lockRecord) {
	t.Helper()
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal lock record: %v", err)
	}
	if err := store.Put(context.Background(), key, data); err != nil {
		t.Fatalf("put lock record: %v", err)
	}
}

func TestLockAcquireRelease(t *testing.T) {
	ctx := context.Background()
	m, store, _ := openTestLockManager(t, LockOptions{})

	if !m.Acquire(ctx, "workset_001", "alice") {
		t.Fatal("uncontended acquire failed")
	}
	if _, err := store.Get(ctx, lockKey("workset_001")); err != nil {
		t.Fatalf("formal lock missing after acquire: %v", err)
	}

	// Held lock blocks a second acquirer outright.
	if m.Acquire(ctx, "workset_001", "bob") {
		t.Fatal("second acquire succeeded while lock held")
	}

	m.Release(ctx, "workset_001", "alice")
	if _, err := store.Get(ctx, lockKey("workset_001")); !storage.IsNotFound(err) {
		t.Fatalf("lock still present after release: %v", err)
	}

	if !m.Acquire(ctx, "workset_001", "bob") {
		t.Fatal("acquire after release failed")
	}
}

func TestLockReleaseOwnerMismatch(t *testing.T) {
	ctx := context.Background()
	m, store, _ := openTestLockManager(t, LockOptions{})

	if !m.Acquire(ctx, "workset_001", "alice") {
		t.Fatal("acquire failed")
	}
	m.Release(ctx, "workset_001", "bob")
	if _, err := store.Get(ctx, lockKey("workset_001")); err != nil {
		t.Fatalf("non-owner release removed the lock: %v", err)
	}
}

func TestLockExpiredSweptOnAcquire(t *testing.T) {
	ctx := context.Background()
	m, store, collector := openTestLockManager(t, LockOptions{})

	putLockRecord(t, store, lockKey("workset_001"), lockRecord{
		Workset:   "workset_001",
		Owner:     "ghost",
		Timestamp: time.Now().Add(-10 * time.Minute),
		ExpiresAt: time.Now().Add(-8 * time.Minute),
		Status:    lockStatusLocked,
	})

	if !m.Acquire(ctx, "workset_001", "alice") {
		t.Fatal("acquire did not reclaim an expired lock")
	}
	collector.mu.Lock()
	swept := collector.swept
	collector.mu.Unlock()
	if swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}
}

func TestLockSweepExpired(t *testing.T) {
	ctx := context.Background()
	m, store, _ := openTestLockManager(t, LockOptions{})

	putLockRecord(t, store, lockKey("workset_001"), lockRecord{
		Workset:   "workset_001",
		Owner:     "ghost",
		ExpiresAt: time.Now().Add(-time.Minute),
		Status:    lockStatusLocked,
	})
	putLockRecord(t, store, lockKey("workset_002"), lockRecord{
		Workset:   "workset_002",
		Owner:     "alice",
		ExpiresAt: time.Now().Add(time.Minute),
		Status:    lockStatusLocked,
	})
	// Bids are not formal locks and must survive the sweep.
	putLockRecord(t, store, competitionKey("workset_003", "bob_x"), lockRecord{
		Workset:       "workset_003",
		Owner:         "bob",
		CompetitionID: "bob_x",
		Timestamp:     time.Now().Add(-time.Hour),
		Status:        lockStatusCompeting,
	})

	removed, err := m.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := store.Get(ctx, lockKey("workset_001")); !storage.IsNotFound(err) {
		t.Error("expired lock survived the sweep")
	}
	if _, err := store.Get(ctx, lockKey("workset_002")); err != nil {
		t.Error("live lock was swept")
	}
	if _, err := store.Get(ctx, competitionKey("workset_003", "bob_x")); err != nil {
		t.Error("competition bid was swept")
	}
}

func TestLockEarlierBidWins(t *testing.T) {
	ctx := context.Background()
	m, store, _ := openTestLockManager(t, LockOptions{})

	// A pre-existing bid with an earlier timestamp must beat the acquirer.
	putLockRecord(t, store, competitionKey("workset_001", "bob_early"), lockRecord{
		Workset:       "workset_001",
		Owner:         "bob",
		CompetitionID: "bob_early",
		Timestamp:     time.Now().Add(-time.Minute),
		Status:        lockStatusCompeting,
	})

	if m.Acquire(ctx, "workset_001", "alice") {
		t.Fatal("acquire won against an earlier bid")
	}
	if _, err := store.Get(ctx, lockKey("workset_001")); !storage.IsNotFound(err) {
		t.Fatalf("loser wrote a formal lock: %v", err)
	}
}

func TestLockConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	// A settle window much wider than announce skew makes every bidder see
	// every bid, so the judgment is unanimous.
	m, _, _ := openTestLockManager(t, LockOptions{
		SettleMin: 100 * time.Millisecond,
		SettleMax: 120 * time.Millisecond,
	})

	const bidders = 5
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		owner := string(rune('a' + i))
		go func() {
			defer wg.Done()
			if m.Acquire(ctx, "workset_001", owner) {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}
