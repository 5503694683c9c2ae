package assign

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rzbill/worksets/internal/metrics"
	"github.com/rzbill/worksets/internal/storage"
	"github.com/rzbill/worksets/pkg/log"
)

// assignmentTypeRequest marks rows created by a worker's own request, as
// opposed to rows an operator added by hand.
const assignmentTypeRequest = "user_request"

// Options configures an Assigner.
type Options struct {
	// WorksetCount is the size of the fixed workset namespace. Default 100.
	WorksetCount int
	// UsageCap bounds distinct workers per workset over its lifetime. Default 3.
	UsageCap int
	// MaxAttempts bounds the scan/lock/commit retry loop. Default 5.
	MaxAttempts int
	// DriftThreshold is the tolerated gap between the persisted ledger count
	// and the real-time scan before the ledger is rebuilt. Default 1; a
	// negative value tolerates no drift at all.
	DriftThreshold int
	// BackoffBase scales the linear retry backoff. Default 500ms.
	BackoffBase time.Duration
	// BackoffJitter bounds the random addition to each backoff. Default 500ms.
	BackoffJitter time.Duration
	// Locks configures the lock manager built for this assigner.
	Locks LockOptions
}

func (o *Options) defaults() {
	if o.WorksetCount <= 0 {
		o.WorksetCount = 100
	}
	if o.UsageCap <= 0 {
		o.UsageCap = 3
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.DriftThreshold < 0 {
		o.DriftThreshold = 0
	} else if o.DriftThreshold == 0 {
		o.DriftThreshold = 1
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 500 * time.Millisecond
	}
	if o.BackoffJitter <= 0 {
		o.BackoffJitter = 500 * time.Millisecond
	}
}

// Assigner orchestrates discovery, locking, verification, and the
// transactional commit of workset assignments.
//
// One Request runs the state machine Scanning → Locking → Verifying →
// Committing, with failure edges back to Scanning via backoff and a
// terminal Exhausted state when no candidate survives the filters.
type Assigner struct {
	store        storage.Store
	records      *Records
	ledger       *Ledger
	locks        *LockManager
	materializer *Materializer
	audit        *AuditLog
	logger       log.Logger
	metrics      metrics.Collector
	opts         Options
	now          func() time.Time
}

// New wires an Assigner and its collaborators over the given store.
func New(store storage.Store, opts Options, logger log.Logger, collector metrics.Collector) *Assigner {
	opts.defaults()
	if logger == nil {
		logger = log.NewNop()
	}
	if collector == nil {
		collector = metrics.NewNop()
	}
	records := NewRecords(store)
	return &Assigner{
		store:        store,
		records:      records,
		ledger:       NewLedger(store, records, opts.UsageCap, logger, collector),
		locks:        NewLockManager(store, opts.Locks, logger, collector),
		materializer: NewMaterializer(store),
		audit:        NewAuditLog(store),
		logger:       logger.WithComponent("assigner"),
		metrics:      collector,
		opts:         opts,
		now:          time.Now,
	}
}

// Records exposes the task record accessor sharing this assigner's store.
func (a *Assigner) Records() *Records { return a.records }

// Ledger exposes the usage ledger sharing this assigner's store.
func (a *Assigner) Ledger() *Ledger { return a.ledger }

// Locks exposes the lock manager sharing this assigner's store.
func (a *Assigner) Locks() *LockManager { return a.locks }

// Materializer exposes the work-file materializer sharing this assigner's store.
func (a *Assigner) Materializer() *Materializer { return a.materializer }

// Audit exposes the assignment audit log sharing this assigner's store.
func (a *Assigner) Audit() *AuditLog { return a.audit }

// Request attempts to assign a new workset to worker. Every variant of the
// returned Outcome is a valid terminal state; "no workset assigned" is not
// an error.
func (a *Assigner) Request(ctx context.Context, worker string) Outcome {
	out := a.request(ctx, worker)
	a.metrics.AssignmentResult(out.Result.String())
	return out
}

func (a *Assigner) request(ctx context.Context, worker string) Outcome {
	rows, err := a.records.Load(ctx, worker)
	if err != nil {
		// Conservative: without a readable record we cannot rule out
		// pending work, so no assignment.
		a.logger.Warn("task record unreadable", log.Str("worker", worker), log.Err(err))
		return unavailable("task record unreadable, try again later")
	}
	if HasPending(rows) {
		return pending("unfinished workset in task record; complete it first")
	}

	for attempt := 0; attempt < a.opts.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return unavailable("canceled")
		}

		candidate, found, err := a.findAvailable(ctx, worker)
		if err != nil {
			a.logger.Warn("candidate scan failed", log.Str("worker", worker), log.Err(err))
			if err := a.backoff(ctx, attempt); err != nil {
				return unavailable("canceled")
			}
			continue
		}
		if !found {
			return exhausted("no workset below the usage cap remains for this worker")
		}

		if !a.locks.Acquire(ctx, candidate, worker) {
			if err := a.backoff(ctx, attempt); err != nil {
				return unavailable("canceled")
			}
			continue
		}

		committed, reason := a.verifyAndCommit(ctx, worker, candidate)
		a.locks.Release(ctx, candidate, worker)
		if committed {
			a.logger.Info("workset assigned",
				log.Str("worker", worker),
				log.Str("workset", candidate),
				log.Int("attempt", attempt+1))
			return assigned(candidate)
		}

		a.logger.Debug("assignment attempt failed",
			log.Str("worker", worker),
			log.Str("workset", candidate),
			log.Str("reason", reason))
		if err := a.backoff(ctx, attempt); err != nil {
			return unavailable("canceled")
		}
	}

	return unavailable(fmt.Sprintf("no assignment after %d attempts, try again later", a.opts.MaxAttempts))
}

// findAvailable walks workset ids in ascending numeric order and returns the
// first under the cap that the worker has not completed. The fixed order is
// policy: lower-numbered worksets saturate before higher-numbered ones are
// touched, draining the pool front to back.
func (a *Assigner) findAvailable(ctx context.Context, worker string) (string, bool, error) {
	usage, err := a.ledger.Counts(ctx)
	if err != nil {
		return "", false, err
	}
	rows, err := a.records.Load(ctx, worker)
	if err != nil {
		return "", false, err
	}
	for i := 1; i <= a.opts.WorksetCount; i++ {
		candidate := WorksetID(i)
		if usage[candidate] >= a.opts.UsageCap {
			continue
		}
		if HasCompleted(rows, candidate) {
			// Under the global cap but already done by this worker; a
			// worker never repeats a finished unit.
			continue
		}
		return candidate, true, nil
	}
	return "", false, nil
}

// verifyAndCommit runs while the candidate's lock is held. It re-verifies
// availability against both the ledger and a real-time record scan, then
// commits across the ledger, the task record, and the materialized file in
// that order, rolling back in reverse on failure.
func (a *Assigner) verifyAndCommit(ctx context.Context, worker, candidate string) (bool, string) {
	// Verify: the window between scan and lock acquisition may have let
	// another worker saturate the candidate.
	usage, err := a.ledger.Counts(ctx)
	if err != nil {
		return false, fmt.Sprintf("ledger re-read failed: %v", err)
	}
	if usage[candidate] >= a.opts.UsageCap {
		return false, "candidate saturated between scan and lock"
	}

	// Final completion guard; a stale scan may have raced a completion.
	rows, err := a.records.Load(ctx, worker)
	if err != nil {
		return false, fmt.Sprintf("task record re-read failed: %v", err)
	}
	if HasCompleted(rows, candidate) {
		return false, "worker already completed this workset"
	}

	// Ground truth, not the cached ledger: scan every task record.
	realCount, err := a.records.UsageCount(ctx, candidate)
	if err != nil {
		return false, fmt.Sprintf("real-time usage scan failed: %v", err)
	}
	if realCount >= a.opts.UsageCap {
		return false, "candidate saturated per real-time scan"
	}

	if err := a.ledger.Increment(ctx, candidate, realCount, a.opts.DriftThreshold); err != nil {
		return false, fmt.Sprintf("ledger increment refused: %v", err)
	}

	row := TaskRow{
		Workset:        candidate,
		Status:         StatusNotStarted,
		AssignedAt:     a.now(),
		AutoAssigned:   true,
		AssignmentType: assignmentTypeRequest,
	}
	if err := a.records.Append(ctx, worker, row); err != nil {
		a.rollbackLedger(ctx, candidate)
		return false, fmt.Sprintf("record append failed: %v", err)
	}

	if err := a.materializer.Materialize(ctx, worker, candidate); err != nil {
		a.rollbackRecord(ctx, worker, candidate)
		a.rollbackLedger(ctx, candidate)
		return false, fmt.Sprintf("materialize failed: %v", err)
	}

	// Diagnostic only; a failed audit append never unwinds the assignment.
	if err := a.audit.Append(ctx, AuditEntry{
		Worker:         worker,
		Workset:        candidate,
		AssignmentType: assignmentTypeRequest,
		Success:        true,
	}); err != nil {
		a.logger.Warn("audit append failed", log.Str("worker", worker), log.Err(err))
	}

	return true, ""
}

func (a *Assigner) rollbackLedger(ctx context.Context, candidate string) {
	a.metrics.Rollback()
	if err := a.ledger.Decrement(ctx, candidate); err != nil {
		a.logger.Error("ledger rollback failed", log.Str("workset", candidate), log.Err(err))
	}
}

func (a *Assigner) rollbackRecord(ctx context.Context, worker, candidate string) {
	if err := a.records.Remove(ctx, worker, candidate); err != nil {
		a.logger.Error("record rollback failed",
			log.Str("worker", worker),
			log.Str("workset", candidate),
			log.Err(err))
	}
}

// backoff sleeps (attempt+1)*BackoffBase plus random jitter, honoring ctx.
func (a *Assigner) backoff(ctx context.Context, attempt int) error {
	wait := time.Duration(attempt+1) * a.opts.BackoffBase
	wait += time.Duration(rand.Int64N(int64(a.opts.BackoffJitter)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
