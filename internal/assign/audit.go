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

var auditHeader = []string{"timestamp", "username", "workset", "assignment_type", "success"}

// AuditEntry is one row of the assignment audit log.
type AuditEntry struct {
	Timestamp      time.Time
	Worker         string
	Workset        string
	AssignmentType string
	Success        bool
}

// AuditLog appends assignment events to a single CSV object in the store.
//
// The log is diagnostic, not authoritative: the assigner treats append
// failures as log-and-continue and never rolls back a committed assignment
// because of them. The append is read-modify-write like everything else on
// the store, but it runs while the workset lock is held so concurrent
// appends for the same workset cannot interleave.
type AuditLog struct {
	store storage.Store
	now   func() time.Time
}

// NewAuditLog returns an AuditLog over the store.
func NewAuditLog(store storage.Store) *AuditLog {
	return &AuditLog{store: store, now: time.Now}
}

// Append adds one entry to the log, creating it on first use. A zero
// Timestamp is filled with the current time.
func (a *AuditLog) Append(ctx context.Context, entry AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = a.now()
	}
	entries, err := a.List(ctx)
	if err != nil {
		return err
	}
	entries = append(entries, entry)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(auditHeader); err != nil {
		return err
	}
	for _, e := range entries {
		rec := []string{
			e.Timestamp.UTC().Format(time.RFC3339),
			e.Worker,
			e.Workset,
			e.AssignmentType,
			strconv.FormatBool(e.Success),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := a.store.Put(ctx, auditLogKey, buf.Bytes()); err != nil {
		return fmt.Errorf("audit append: %w", err)
	}
	return nil
}

// List returns every audit entry in append order. A missing log is empty.
func (a *AuditLog) List(ctx context.Context) ([]AuditEntry, error) {
	data, err := a.store.Get(ctx, auditLogKey)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("audit read: %w", err)
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	recs, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("audit decode: %w", err)
	}
	var entries []AuditEntry
	for i, rec := range recs {
		if i == 0 && len(rec) > 0 && rec[0] == "timestamp" {
			continue
		}
		if len(rec) < 5 {
			continue
		}
		e := AuditEntry{Worker: rec[1], Workset: rec[2], AssignmentType: rec[3]}
		if ts, err := time.Parse(time.RFC3339, rec[0]); err == nil {
			e.Timestamp = ts
		}
		if b, err := strconv.ParseBool(rec[4]); err == nil {
			e.Success = b
		}
		entries = append(entries, e)
	}
	return entries, nil
}
