package assign

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rzbill/worksets/internal/metrics"
	"github.com/rzbill/worksets/internal/storage"
	"github.com/rzbill/worksets/pkg/log"
)

// ledgerObject is the persisted shape of the usage ledger.
type ledgerObject struct {
	WorksetUsage      map[string]int `json:"workset_usage"`
	LastUpdated       time.Time      `json:"last_updated"`
	GeneratedFromScan bool           `json:"generated_from_scan,omitempty"`
	ScannedRecords    int            `json:"scanned_records,omitempty"`
	TotalAssignments  int            `json:"total_assignments,omitempty"`
	VerifiedAt        time.Time      `json:"verified_at,omitempty"`
}

// Ledger maintains the per-workset assignment counter in the shared store.
//
// The persisted object is a cache of ground truth; the authoritative value is
// always reconstructable by scanning every task record and counting, per
// workset, the distinct workers holding it. Regenerate performs that scan.
type Ledger struct {
	store    storage.Store
	records  *Records
	logger   log.Logger
	metrics  metrics.Collector
	usageCap int
	now      func() time.Time
}

// NewLedger returns a Ledger enforcing usageCap on increments.
func NewLedger(store storage.Store, records *Records, usageCap int, logger log.Logger, collector metrics.Collector) *Ledger {
	if logger == nil {
		logger = log.NewNop()
	}
	if collector == nil {
		collector = metrics.NewNop()
	}
	return &Ledger{
		store:    store,
		records:  records,
		logger:   logger.WithComponent("ledger"),
		metrics:  collector,
		usageCap: usageCap,
		now:      time.Now,
	}
}

// Counts returns the current usage map. An absent ledger object is
// indistinguishable from "never computed", so absence triggers a full
// regeneration rather than an assumption of zero usage.
func (l *Ledger) Counts(ctx context.Context) (map[string]int, error) {
	obj, err := l.read(ctx)
	if err != nil {
		if storage.IsNotFound(err) {
			return l.Regenerate(ctx)
		}
		return nil, err
	}
	return obj.WorksetUsage, nil
}

// Regenerate rebuilds the ledger from a full scan of task records and
// persists the result with scan provenance. Repeated appearance of a workset
// in one worker's record counts once. Idempotent.
func (l *Ledger) Regenerate(ctx context.Context) (map[string]int, error) {
	workers, err := l.records.ListWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger regenerate: %w", err)
	}

	usage := make(map[string]int)
	scanned := 0
	for _, worker := range workers {
		rows, err := l.records.Load(ctx, worker)
		if err != nil {
			return nil, fmt.Errorf("ledger regenerate: %w", err)
		}
		scanned++
		for workset := range DistinctWorksets(rows) {
			usage[workset]++
		}
	}

	total := 0
	for _, n := range usage {
		total += n
	}
	obj := ledgerObject{
		WorksetUsage:      usage,
		LastUpdated:       l.now().UTC(),
		GeneratedFromScan: true,
		ScannedRecords:    scanned,
		TotalAssignments:  total,
	}
	if err := l.write(ctx, obj); err != nil {
		return nil, err
	}
	l.metrics.LedgerRebuild()
	l.logger.Info("ledger regenerated from scan",
		log.Int("scanned_records", scanned),
		log.Int("total_assignments", total))
	return usage, nil
}

// ForceRegenerate discards the persisted ledger before rebuilding, dropping
// any accumulated drift.
func (l *Ledger) ForceRegenerate(ctx context.Context) (map[string]int, error) {
	if err := l.store.Delete(ctx, ledgerKey); err != nil {
		return nil, fmt.Errorf("ledger delete: %w", err)
	}
	return l.Regenerate(ctx)
}

// Increment raises the count for workset by one, after verifying the
// persisted count against expected. A persisted count off by more than
// driftThreshold means the ledger has drifted from ground truth (partial
// writes, lost updates) and is rebuilt from scan before proceeding. The
// increment refuses to exceed the usage cap: hitting that path means the
// caller lost a race, not that the cap was enforced here first.
func (l *Ledger) Increment(ctx context.Context, workset string, expected, driftThreshold int) error {
	obj, err := l.read(ctx)
	if err != nil {
		if !storage.IsNotFound(err) {
			return err
		}
		obj = ledgerObject{WorksetUsage: map[string]int{}}
	}

	persisted := obj.WorksetUsage[workset]
	if diff := persisted - expected; diff > driftThreshold || diff < -driftThreshold {
		l.logger.Warn("ledger drift detected, regenerating",
			log.Str("workset", workset),
			log.Int("persisted", persisted),
			log.Int("expected", expected))
		usage, err := l.Regenerate(ctx)
		if err != nil {
			return err
		}
		obj.WorksetUsage = usage
	}

	next := obj.WorksetUsage[workset] + 1
	if next > l.usageCap {
		return fmt.Errorf("workset %s usage would exceed cap (%d > %d)", workset, next, l.usageCap)
	}
	obj.WorksetUsage[workset] = next
	obj.LastUpdated = l.now().UTC()
	obj.VerifiedAt = obj.LastUpdated
	return l.write(ctx, obj)
}

// Decrement lowers the count for workset by one, removing the key when the
// result reaches zero. Rollback-only: the caller holds the workset lock for
// the whole assignment transaction, so no increment for the same id is in
// flight.
func (l *Ledger) Decrement(ctx context.Context, workset string) error {
	obj, err := l.read(ctx)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil
		}
		return err
	}
	if _, ok := obj.WorksetUsage[workset]; !ok {
		return nil
	}
	obj.WorksetUsage[workset]--
	if obj.WorksetUsage[workset] <= 0 {
		delete(obj.WorksetUsage, workset)
	}
	obj.LastUpdated = l.now().UTC()
	return l.write(ctx, obj)
}

// Summary aggregates usage counts for reporting.
type Summary struct {
	TotalWorksets int
	Unused        int
	PartiallyUsed int
	Saturated     int
}

// Summarize buckets the pool by usage against the cap.
func (l *Ledger) Summarize(ctx context.Context, totalWorksets int) (Summary, error) {
	usage, err := l.Counts(ctx)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{TotalWorksets: totalWorksets}
	for i := 1; i <= totalWorksets; i++ {
		switch n := usage[WorksetID(i)]; {
		case n == 0:
			s.Unused++
		case n >= l.usageCap:
			s.Saturated++
		default:
			s.PartiallyUsed++
		}
	}
	return s, nil
}

func (l *Ledger) read(ctx context.Context) (ledgerObject, error) {
	data, err := l.store.Get(ctx, ledgerKey)
	if err != nil {
		return ledgerObject{}, err
	}
	var obj ledgerObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return ledgerObject{}, fmt.Errorf("ledger decode: %w", err)
	}
	if obj.WorksetUsage == nil {
		obj.WorksetUsage = map[string]int{}
	}
	return obj, nil
}

func (l *Ledger) write(ctx context.Context, obj ledgerObject) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("ledger encode: %w", err)
	}
	if err := l.store.Put(ctx, ledgerKey, data); err != nil {
		return fmt.Errorf("ledger write: %w", err)
	}
	return nil
}
