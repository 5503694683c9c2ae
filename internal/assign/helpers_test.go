package assign

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rzbill/worksets/internal/storage"
	"github.com/rzbill/worksets/internal/storage/memstore"
	"github.com/rzbill/worksets/pkg/log"
)

// seedDatasets writes a small static dataset for worksets 1..n.
func seedDatasets(t *testing.T, store storage.Store, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		data := []byte("id,text\n1,alpha\n2,beta\n3,gamma\n")
		if err := store.Put(context.Background(), datasetKey(WorksetID(i)), data); err != nil {
			t.Fatalf("seed dataset %d: %v", i, err)
		}
	}
}

// fastOptions returns Options tuned so retry and settle waits do not slow
// the tests down.
func fastOptions(worksets int) Options {
	return Options{
		WorksetCount:   worksets,
		UsageCap:       3,
		MaxAttempts:    5,
		DriftThreshold: 1,
		BackoffBase:    time.Millisecond,
		BackoffJitter:  time.Millisecond,
		Locks: LockOptions{
			LeaseDuration: 2 * time.Minute,
			SettleMin:     time.Millisecond,
			SettleMax:     2 * time.Millisecond,
		},
	}
}

// openTestAssigner builds an assigner over a fresh in-memory store with n
// seeded datasets.
func openTestAssigner(t *testing.T, n int) (*Assigner, *memstore.Store, *captureMetrics) {
	t.Helper()
	store := memstore.New()
	seedDatasets(t, store, n)
	collector := newCaptureMetrics()
	return New(store, fastOptions(n), log.NewNop(), collector), store, collector
}

// captureMetrics records collector calls for assertions.
type captureMetrics struct {
	mu           sync.Mutex
	results      map[string]int
	competitions map[string]int
	rollbacks    int
	rebuilds     int
	swept        int
}

func newCaptureMetrics() *captureMetrics {
	return &captureMetrics{
		results:      make(map[string]int),
		competitions: make(map[string]int),
	}
}

func (c *captureMetrics) AssignmentResult(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[result]++
}

func (c *captureMetrics) CompetitionOutcome(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.competitions[outcome]++
}

func (c *captureMetrics) Rollback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollbacks++
}

func (c *captureMetrics) LedgerRebuild() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebuilds++
}

func (c *captureMetrics) LocksSwept(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.swept += n
}

func (c *captureMetrics) rollbackCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollbacks
}

func (c *captureMetrics) rebuildCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebuilds
}
