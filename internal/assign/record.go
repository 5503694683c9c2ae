package assign

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/rzbill/worksets/internal/storage"
)

// Status is the lifecycle state of one assigned workset in a task record.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// valid reports whether s is one of the three known statuses.
func (s Status) valid() bool {
	return s == StatusNotStarted || s == StatusInProgress || s == StatusCompleted
}

// TaskRow is one assignment in a worker's task record.
type TaskRow struct {
	Workset        string
	Status         Status
	AssignedAt     time.Time
	AutoAssigned   bool
	AssignmentType string
}

var recordHeader = []string{"workset", "status", "assigned_at", "auto_assigned", "assignment_type"}

// Records reads and writes worker task records in the shared store. One CSV
// object per worker; every call hits the store, nothing is cached.
type Records struct {
	store storage.Store
}

// NewRecords returns a Records accessor over the store.
func NewRecords(store storage.Store) *Records {
	return &Records{store: store}
}

// Load returns the worker's task rows. A missing record object means a new
// worker and yields an empty slice, not an error.
func (r *Records) Load(ctx context.Context, worker string) ([]TaskRow, error) {
	data, err := r.store.Get(ctx, recordKey(worker))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load record for %s: %w", worker, err)
	}
	rows, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("decode record for %s: %w", worker, err)
	}
	return rows, nil
}

// Save persists the worker's task rows.
func (r *Records) Save(ctx context.Context, worker string, rows []TaskRow) error {
	data, err := encodeRecord(rows)
	if err != nil {
		return fmt.Errorf("encode record for %s: %w", worker, err)
	}
	if err := r.store.Put(ctx, recordKey(worker), data); err != nil {
		return fmt.Errorf("save record for %s: %w", worker, err)
	}
	return nil
}

// Append adds a new assignment row. It re-reads the record first and refuses
// a duplicate workset id: one row per workset per worker, ever.
func (r *Records) Append(ctx context.Context, worker string, row TaskRow) error {
	rows, err := r.Load(ctx, worker)
	if err != nil {
		return err
	}
	for _, existing := range rows {
		if existing.Workset == row.Workset {
			return fmt.Errorf("worker %s already has a row for %s", worker, row.Workset)
		}
	}
	return r.Save(ctx, worker, append(rows, row))
}

// Remove deletes the auto-assigned row for workset. It is the compensating
// action for a failed commit and leaves manually added rows untouched.
func (r *Records) Remove(ctx context.Context, worker, workset string) error {
	rows, err := r.Load(ctx, worker)
	if err != nil {
		return err
	}
	kept := rows[:0]
	for _, row := range rows {
		if row.Workset == workset && row.AutoAssigned {
			continue
		}
		kept = append(kept, row)
	}
	return r.Save(ctx, worker, kept)
}

// SetStatus transitions the row for workset to status.
func (r *Records) SetStatus(ctx context.Context, worker, workset string, status Status) error {
	if !status.valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	rows, err := r.Load(ctx, worker)
	if err != nil {
		return err
	}
	for i := range rows {
		if rows[i].Workset == workset {
			rows[i].Status = status
			return r.Save(ctx, worker, rows)
		}
	}
	return fmt.Errorf("worker %s has no row for %s", worker, workset)
}

// ListWorkers returns every worker that has a task record, by listing record
// objects under the workers prefix.
func (r *Records) ListWorkers(ctx context.Context) ([]string, error) {
	keys, err := r.store.List(ctx, prefixWorkers)
	if err != nil {
		return nil, fmt.Errorf("list worker records: %w", err)
	}
	var workers []string
	for _, key := range keys {
		if w := workerFromRecordKey(key); w != "" {
			workers = append(workers, w)
		}
	}
	return workers, nil
}

// UsageCount scans every task record and counts distinct workers holding a
// row for workset, regardless of status. This is the ground-truth usage
// figure; assignment consumes a slot, completion does not return it.
func (r *Records) UsageCount(ctx context.Context, workset string) (int, error) {
	workers, err := r.ListWorkers(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, worker := range workers {
		rows, err := r.Load(ctx, worker)
		if err != nil {
			return 0, err
		}
		for _, row := range rows {
			if row.Workset == workset {
				count++
				break // one slot per worker no matter how many rows
			}
		}
	}
	return count, nil
}

// HasPending reports whether any row is not yet completed.
func HasPending(rows []TaskRow) bool {
	for _, row := range rows {
		if row.Status == StatusNotStarted || row.Status == StatusInProgress {
			return true
		}
	}
	return false
}

// HasCompleted reports whether rows contain a completed entry for workset.
func HasCompleted(rows []TaskRow, workset string) bool {
	for _, row := range rows {
		if row.Workset == workset && row.Status == StatusCompleted {
			return true
		}
	}
	return false
}

// DistinctWorksets returns the set of workset ids present in rows.
func DistinctWorksets(rows []TaskRow) map[string]struct{} {
	out := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		out[row.Workset] = struct{}{}
	}
	return out
}

func encodeRecord(rows []TaskRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(recordHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		assignedAt := ""
		if !row.AssignedAt.IsZero() {
			assignedAt = row.AssignedAt.UTC().Format(time.RFC3339)
		}
		rec := []string{
			row.Workset,
			string(row.Status),
			assignedAt,
			strconv.FormatBool(row.AutoAssigned),
			row.AssignmentType,
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func decodeRecord(data []byte) ([]TaskRow, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // tolerate records written before newer columns
	recs, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	var rows []TaskRow
	for i, rec := range recs {
		if i == 0 && len(rec) > 0 && rec[0] == "workset" {
			continue // header
		}
		if len(rec) < 2 || rec[0] == "" {
			continue
		}
		row := TaskRow{Workset: rec[0], Status: Status(rec[1])}
		if !row.Status.valid() {
			return nil, fmt.Errorf("row %d: unknown status %q", i, rec[1])
		}
		if len(rec) > 2 && rec[2] != "" {
			if ts, err := time.Parse(time.RFC3339, rec[2]); err == nil {
				row.AssignedAt = ts
			}
		}
		if len(rec) > 3 && rec[3] != "" {
			if b, err := strconv.ParseBool(rec[3]); err == nil {
				row.AutoAssigned = b
			}
		}
		if len(rec) > 4 {
			row.AssignmentType = rec[4]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
