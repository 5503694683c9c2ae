package assign

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/rzbill/worksets/internal/metrics"
	"github.com/rzbill/worksets/internal/storage"
	"github.com/rzbill/worksets/pkg/id"
	"github.com/rzbill/worksets/pkg/log"
)

// Lock record statuses.
const (
	lockStatusCompeting = "competing"
	lockStatusLocked    = "locked"
)

// lockRecord is the persisted shape of both competition bids and formal
// locks; bids carry no expiry.
type lockRecord struct {
	Workset       string    `json:"workset"`
	Owner         string    `json:"owner"`
	CompetitionID string    `json:"competition_id"`
	Timestamp     time.Time `json:"timestamp"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	Status        string    `json:"status"`
}

// LockOptions configures a LockManager.
type LockOptions struct {
	// LeaseDuration bounds how long a formal lock lives without release.
	// Defaults to 2 minutes.
	LeaseDuration time.Duration
	// SettleMin/SettleMax bound the randomized wait between announcing a bid
	// and judging the competition, leaving time for concurrent announcers to
	// publish. Defaults: 500ms and 1500ms.
	SettleMin time.Duration
	SettleMax time.Duration
}

func (o *LockOptions) defaults() {
	if o.LeaseDuration <= 0 {
		o.LeaseDuration = 2 * time.Minute
	}
	if o.SettleMin <= 0 {
		o.SettleMin = 500 * time.Millisecond
	}
	if o.SettleMax < o.SettleMin {
		o.SettleMax = o.SettleMin + time.Second
	}
}

// LockManager provides advisory mutual exclusion over workset ids using only
// get/put/delete/list on the shared store.
//
// The store has no compare-and-swap, so acquisition runs a two-phase
// competition: every requester announces a uniquely keyed bid, waits the
// settle interval, then lists all bids and declares the earliest (timestamp,
// then competition id) the winner. Only the winner writes the formal lock.
// The protocol is probabilistic; the assignment commit re-verifies usage
// against ground truth, so a double-win costs a rejected commit, never a cap
// violation.
type LockManager struct {
	store   storage.Store
	logger  log.Logger
	metrics metrics.Collector
	ids     *id.Generator
	opts    LockOptions
	now     func() time.Time
}

// NewLockManager returns a LockManager over the store.
func NewLockManager(store storage.Store, opts LockOptions, logger log.Logger, collector metrics.Collector) *LockManager {
	opts.defaults()
	if logger == nil {
		logger = log.NewNop()
	}
	if collector == nil {
		collector = metrics.NewNop()
	}
	return &LockManager{
		store:   store,
		logger:  logger.WithComponent("locks"),
		metrics: collector,
		ids:     id.NewGenerator(),
		opts:    opts,
		now:     time.Now,
	}
}

// Acquire attempts to take the formal lock for workset on behalf of owner.
// It returns false after the settle phase when the caller is not the winner;
// the caller owns the outer retry loop. Any store failure along the way also
// counts as not winning.
func (m *LockManager) Acquire(ctx context.Context, workset, owner string) bool {
	// An unexpired formal lock means someone is mid-transaction; no point
	// competing. An expired one is swept so the competition can proceed.
	if held, err := m.sweepWorkset(ctx, workset); err != nil || held {
		if err != nil {
			m.logger.Warn("lock precheck failed", log.Str("workset", workset), log.Err(err))
		}
		m.metrics.CompetitionOutcome("lost")
		return false
	}

	competitionID := owner + "_" + m.ids.Next().String()
	bidKey := competitionKey(workset, competitionID)
	bid := lockRecord{
		Workset:       workset,
		Owner:         owner,
		CompetitionID: competitionID,
		Timestamp:     m.now().UTC(),
		Status:        lockStatusCompeting,
	}
	if err := m.put(ctx, bidKey, bid); err != nil {
		m.logger.Warn("announce failed", log.Str("workset", workset), log.Err(err))
		m.metrics.CompetitionOutcome("lost")
		return false
	}

	if err := m.settle(ctx); err != nil {
		_ = m.store.Delete(ctx, bidKey)
		m.metrics.CompetitionOutcome("lost")
		return false
	}

	won, err := m.judge(ctx, workset, competitionID)
	if err != nil || !won {
		if err != nil {
			m.logger.Warn("settle failed", log.Str("workset", workset), log.Err(err))
		}
		_ = m.store.Delete(ctx, bidKey)
		m.metrics.CompetitionOutcome("lost")
		return false
	}

	lock := lockRecord{
		Workset:       workset,
		Owner:         owner,
		CompetitionID: competitionID,
		Timestamp:     m.now().UTC(),
		ExpiresAt:     m.now().Add(m.opts.LeaseDuration).UTC(),
		Status:        lockStatusLocked,
	}
	if err := m.put(ctx, lockKey(workset), lock); err != nil {
		m.logger.Warn("confirm failed", log.Str("workset", workset), log.Err(err))
		_ = m.store.Delete(ctx, bidKey)
		m.metrics.CompetitionOutcome("lost")
		return false
	}

	// Cleanup of all bids is best-effort; leftover bids lose every future
	// competition on timestamp order and are removed by later winners.
	m.cleanupCompetition(ctx, workset)
	m.metrics.CompetitionOutcome("won")
	m.logger.Debug("lock acquired", log.Str("workset", workset), log.Str("owner", owner))
	return true
}

// Release deletes the formal lock if owner still holds it. An owner mismatch
// is a no-op: after expiry and reassignment the lock belongs to someone else
// and must not be torn down by the previous holder.
func (m *LockManager) Release(ctx context.Context, workset, owner string) {
	current, err := m.get(ctx, lockKey(workset))
	if err != nil {
		if !storage.IsNotFound(err) {
			m.logger.Warn("release read failed", log.Str("workset", workset), log.Err(err))
		}
		return
	}
	if current.Owner != owner {
		m.logger.Warn("release skipped, lock owned elsewhere",
			log.Str("workset", workset),
			log.Str("owner", owner),
			log.Str("holder", current.Owner))
		return
	}
	if err := m.store.Delete(ctx, lockKey(workset)); err != nil {
		m.logger.Warn("release delete failed", log.Str("workset", workset), log.Err(err))
	}
}

// SweepExpired deletes every formal lock whose expiry has passed and returns
// how many were removed. Any worker may run this at any time; it is the sole
// recovery path for locks abandoned by crashed holders.
func (m *LockManager) SweepExpired(ctx context.Context) (int, error) {
	keys, err := m.store.List(ctx, prefixLocks)
	if err != nil {
		return 0, err
	}
	removed := 0
	now := m.now()
	for _, key := range keys {
		if !isLockKey(key) {
			continue
		}
		rec, err := m.get(ctx, key)
		if err != nil {
			continue
		}
		if !rec.ExpiresAt.IsZero() && now.After(rec.ExpiresAt) {
			if err := m.store.Delete(ctx, key); err == nil {
				removed++
				m.logger.Info("expired lock swept",
					log.Str("workset", rec.Workset),
					log.Str("owner", rec.Owner))
			}
		}
	}
	if removed > 0 {
		m.metrics.LocksSwept(removed)
	}
	return removed, nil
}

// sweepWorkset handles the formal lock for one workset: reports true when an
// unexpired lock is held, deletes it when expired.
func (m *LockManager) sweepWorkset(ctx context.Context, workset string) (held bool, err error) {
	rec, err := m.get(ctx, lockKey(workset))
	if err != nil {
		if storage.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if rec.ExpiresAt.IsZero() || m.now().Before(rec.ExpiresAt) {
		return true, nil
	}
	if err := m.store.Delete(ctx, lockKey(workset)); err != nil {
		return false, err
	}
	m.metrics.LocksSwept(1)
	m.logger.Info("expired lock swept", log.Str("workset", workset), log.Str("owner", rec.Owner))
	return false, nil
}

// settle sleeps a uniformly random interval in [SettleMin, SettleMax].
func (m *LockManager) settle(ctx context.Context) error {
	span := m.opts.SettleMax - m.opts.SettleMin
	wait := m.opts.SettleMin
	if span > 0 {
		wait += time.Duration(rand.Int64N(int64(span)))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// judge lists every bid for workset and reports whether competitionID is the
// earliest by (timestamp, competition id).
func (m *LockManager) judge(ctx context.Context, workset, competitionID string) (bool, error) {
	keys, err := m.store.List(ctx, competitionPrefix(workset))
	if err != nil {
		return false, err
	}
	var bids []lockRecord
	for _, key := range keys {
		rec, err := m.get(ctx, key)
		if err != nil {
			continue // bid deleted or unreadable; it cannot win
		}
		if rec.Status == lockStatusCompeting {
			bids = append(bids, rec)
		}
	}
	if len(bids) == 0 {
		// Our own bid vanished; treat as lost.
		return false, nil
	}
	sort.Slice(bids, func(i, j int) bool {
		if !bids[i].Timestamp.Equal(bids[j].Timestamp) {
			return bids[i].Timestamp.Before(bids[j].Timestamp)
		}
		return bids[i].CompetitionID < bids[j].CompetitionID
	})
	return bids[0].CompetitionID == competitionID, nil
}

// cleanupCompetition removes every bid for workset, winner's included.
func (m *LockManager) cleanupCompetition(ctx context.Context, workset string) {
	keys, err := m.store.List(ctx, competitionPrefix(workset))
	if err != nil {
		m.logger.Warn("competition cleanup list failed", log.Str("workset", workset), log.Err(err))
		return
	}
	for _, key := range keys {
		if err := m.store.Delete(ctx, key); err != nil {
			m.logger.Warn("competition cleanup delete failed", log.Str("key", key), log.Err(err))
		}
	}
}

func (m *LockManager) get(ctx context.Context, key string) (lockRecord, error) {
	data, err := m.store.Get(ctx, key)
	if err != nil {
		return lockRecord{}, err
	}
	var rec lockRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return lockRecord{}, err
	}
	return rec, nil
}

func (m *LockManager) put(ctx context.Context, key string, rec lockRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return m.store.Put(ctx, key, data)
}
