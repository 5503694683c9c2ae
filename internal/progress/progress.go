package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rzbill/worksets/internal/assign"
	"github.com/rzbill/worksets/internal/storage"
	"github.com/rzbill/worksets/pkg/log"
)

// ErrNoActive means the worker holds no unfinished workset.
var ErrNoActive = errors.New("no active workset")

// Item is one undone row of a worker's materialized file.
type Item struct {
	Workset string
	Row     int // 1-based position among data rows
	Total   int
	Done    int
	Header  []string
	Fields  []string
}

// Tracker advances a worker through assigned worksets.
type Tracker struct {
	records      *assign.Records
	materializer *assign.Materializer
	store        storage.Store
	logger       log.Logger
	now          func() time.Time
}

// NewTracker returns a Tracker over the store.
func NewTracker(store storage.Store, logger log.Logger) *Tracker {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Tracker{
		records:      assign.NewRecords(store),
		materializer: assign.NewMaterializer(store),
		store:        store,
		logger:       logger.WithComponent("progress"),
		now:          time.Now,
	}
}

// Current returns the worker's active workset. An in_progress row wins; with
// none, the oldest not_started row is promoted to in_progress. ErrNoActive
// when the record holds no unfinished work.
func (t *Tracker) Current(ctx context.Context, worker string) (string, error) {
	rows, err := t.records.Load(ctx, worker)
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		if row.Status == assign.StatusInProgress {
			return row.Workset, nil
		}
	}
	for _, row := range rows {
		if row.Status == assign.StatusNotStarted {
			if err := t.records.SetStatus(ctx, worker, row.Workset, assign.StatusInProgress); err != nil {
				return "", err
			}
			t.logger.Debug("workset promoted to in_progress",
				log.Str("worker", worker),
				log.Str("workset", row.Workset))
			return row.Workset, nil
		}
	}
	return "", ErrNoActive
}

// NextItem returns the first undone item of the worker's work file for
// workset. When every item is done it marks the record row completed,
// promotes the next not_started workset if one exists, and returns ok=false.
func (t *Tracker) NextItem(ctx context.Context, worker, workset string) (Item, bool, error) {
	rows, err := t.materializer.ReadWorkFile(ctx, worker, workset)
	if err != nil {
		return Item{}, false, err
	}
	if len(rows) < 2 {
		return Item{}, false, fmt.Errorf("work file for %s/%s has no items", worker, workset)
	}

	header := rows[0]
	total := len(rows) - 1
	done := 0
	for i, row := range rows[1:] {
		if len(row) == 0 || row[len(row)-1] == assign.ProgressDone {
			done++
			continue
		}
		return Item{
			Workset: workset,
			Row:     i + 1,
			Total:   total,
			Done:    done,
			Header:  header,
			Fields:  row[:len(row)-1],
		}, true, nil
	}

	if err := t.finishWorkset(ctx, worker, workset); err != nil {
		return Item{}, false, err
	}
	return Item{Workset: workset, Total: total, Done: total}, false, nil
}

// MarkItemDone flips the Progress cell of one data row to done. Row numbers
// are 1-based, matching Item.Row.
func (t *Tracker) MarkItemDone(ctx context.Context, worker, workset string, row int) error {
	rows, err := t.materializer.ReadWorkFile(ctx, worker, workset)
	if err != nil {
		return err
	}
	if row < 1 || row >= len(rows) {
		return fmt.Errorf("row %d out of range for %s/%s", row, worker, workset)
	}
	target := rows[row]
	if len(target) == 0 {
		return fmt.Errorf("row %d of %s/%s is empty", row, worker, workset)
	}
	target[len(target)-1] = assign.ProgressDone
	return t.materializer.WriteWorkFile(ctx, worker, workset, rows)
}

// annotation is the persisted per-item result object.
type annotation struct {
	Worker  string          `json:"worker"`
	Workset string          `json:"workset"`
	Row     int             `json:"row"`
	SavedAt time.Time       `json:"saved_at"`
	Payload json.RawMessage `json:"payload"`
}

// SaveAnnotation persists the payload for one item and marks it done. The
// annotation write happens first so a crash between the two steps re-offers
// the item rather than losing the result.
func (t *Tracker) SaveAnnotation(ctx context.Context, worker, workset string, row int, payload json.RawMessage) error {
	obj := annotation{
		Worker:  worker,
		Workset: workset,
		Row:     row,
		SavedAt: t.now().UTC(),
		Payload: payload,
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode annotation: %w", err)
	}
	key := assign.AnnotationKey(worker, workset, row)
	if err := t.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("save annotation: %w", err)
	}
	return t.MarkItemDone(ctx, worker, workset, row)
}

// Repair re-materializes any recorded workset whose work file is missing.
// Returns the workset ids rebuilt.
func (t *Tracker) Repair(ctx context.Context, worker string) ([]string, error) {
	rows, err := t.records.Load(ctx, worker)
	if err != nil {
		return nil, err
	}
	var rebuilt []string
	for _, row := range rows {
		if row.Status == assign.StatusCompleted {
			continue
		}
		ok, err := t.materializer.Exists(ctx, worker, row.Workset)
		if err != nil {
			return rebuilt, err
		}
		if ok {
			continue
		}
		if err := t.materializer.Materialize(ctx, worker, row.Workset); err != nil {
			return rebuilt, fmt.Errorf("repair %s: %w", row.Workset, err)
		}
		t.logger.Info("work file rebuilt",
			log.Str("worker", worker),
			log.Str("workset", row.Workset))
		rebuilt = append(rebuilt, row.Workset)
	}
	return rebuilt, nil
}

// finishWorkset marks the record row completed and promotes the next
// not_started workset when one exists.
func (t *Tracker) finishWorkset(ctx context.Context, worker, workset string) error {
	if err := t.records.SetStatus(ctx, worker, workset, assign.StatusCompleted); err != nil {
		return err
	}
	t.logger.Info("workset completed", log.Str("worker", worker), log.Str("workset", workset))
	if _, err := t.Current(ctx, worker); err != nil && !errors.Is(err, ErrNoActive) {
		return err
	}
	return nil
}
