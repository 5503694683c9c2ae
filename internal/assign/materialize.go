package assign

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/rzbill/worksets/internal/storage"
)

// ProgressColumn is appended to every materialized file; "N" marks an item
// not yet done, "Y" a finished one.
const (
	ProgressColumn = "Progress"
	ProgressTodo   = "N"
	ProgressDone   = "Y"
)

// Materializer builds a worker's private copy of a workset's task list from
// the static dataset object.
type Materializer struct {
	store storage.Store
}

// NewMaterializer returns a Materializer over the store.
func NewMaterializer(store storage.Store) *Materializer {
	return &Materializer{store: store}
}

// Materialize reads the dataset behind workset, appends the progress column
// initialized to "N", and writes the result under the worker's results key.
// Re-invocation overwrites with an identical fresh file, so the operation is
// idempotent. An orphaned result file with no matching task row (left by a
// rollback) is harmless: readers only follow record rows.
func (m *Materializer) Materialize(ctx context.Context, worker, workset string) error {
	data, err := m.store.Get(ctx, datasetKey(workset))
	if err != nil {
		if storage.IsNotFound(err) {
			return fmt.Errorf("dataset for %s not found", workset)
		}
		return fmt.Errorf("read dataset for %s: %w", workset, err)
	}

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return fmt.Errorf("decode dataset for %s: %w", workset, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("dataset for %s is empty", workset)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for i, row := range rows {
		cell := ProgressTodo
		if i == 0 {
			cell = ProgressColumn
		}
		if err := w.Write(append(row, cell)); err != nil {
			return fmt.Errorf("encode work file for %s: %w", workset, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode work file for %s: %w", workset, err)
	}

	if err := m.store.Put(ctx, resultKey(worker, workset), buf.Bytes()); err != nil {
		return fmt.Errorf("write work file for %s/%s: %w", worker, workset, err)
	}
	return nil
}

// ReadWorkFile returns the decoded materialized file, header row included.
func (m *Materializer) ReadWorkFile(ctx context.Context, worker, workset string) ([][]string, error) {
	data, err := m.store.Get(ctx, resultKey(worker, workset))
	if err != nil {
		return nil, fmt.Errorf("read work file for %s/%s: %w", worker, workset, err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode work file for %s/%s: %w", worker, workset, err)
	}
	return rows, nil
}

// WriteWorkFile replaces the materialized file with rows.
func (m *Materializer) WriteWorkFile(ctx context.Context, worker, workset string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("encode work file for %s/%s: %w", worker, workset, err)
	}
	if err := m.store.Put(ctx, resultKey(worker, workset), buf.Bytes()); err != nil {
		return fmt.Errorf("write work file for %s/%s: %w", worker, workset, err)
	}
	return nil
}

// Exists reports whether the worker's materialized file for workset is
// present in the store. Best-effort, like every existence check here.
func (m *Materializer) Exists(ctx context.Context, worker, workset string) (bool, error) {
	_, err := m.store.Get(ctx, resultKey(worker, workset))
	if err != nil {
		if storage.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
