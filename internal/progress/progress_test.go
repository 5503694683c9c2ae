package progress

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rzbill/worksets/internal/assign"
	"github.com/rzbill/worksets/internal/storage"
	"github.com/rzbill/worksets/internal/storage/memstore"
)

func openTestTracker(t *testing.T) (*Tracker, *assign.Records, storage.Store) {
	t.Helper()
	store := memstore.New()
	return NewTracker(store, nil), assign.NewRecords(store), store
}

func seedWorkset(t *testing.T, store storage.Store, records *assign.Records, worker, workset string, status assign.Status) {
	t.Helper()
	ctx := context.Background()
	num := workset[len(workset)-3:]
	data := []byte("id,text\n1,alpha\n2,beta\n")
	if err := store.Put(ctx, "worksets/dataset_"+num+".csv", data); err != nil {
		t.Fatalf("seed dataset: %v", err)
	}
	if err := records.Append(ctx, worker, assign.TaskRow{Workset: workset, Status: status}); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	if err := assign.NewMaterializer(store).Materialize(ctx, worker, workset); err != nil {
		t.Fatalf("seed work file: %v", err)
	}
}

func TestCurrentPromotesNotStarted(t *testing.T) {
	ctx := context.Background()
	tr, records, store := openTestTracker(t)

	if _, err := tr.Current(ctx, "alice"); !errors.Is(err, ErrNoActive) {
		t.Fatalf("expected ErrNoActive for empty record, got %v", err)
	}

	seedWorkset(t, store, records, "alice", "workset_001", assign.StatusNotStarted)
	ws, err := tr.Current(ctx, "alice")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if ws != "workset_001" {
		t.Errorf("current = %s, want workset_001", ws)
	}

	rows, _ := records.Load(ctx, "alice")
	if rows[0].Status != assign.StatusInProgress {
		t.Errorf("status = %s, want in_progress", rows[0].Status)
	}

	// A second call returns the same workset without another promotion.
	ws, err = tr.Current(ctx, "alice")
	if err != nil || ws != "workset_001" {
		t.Errorf("repeat current = %s, %v", ws, err)
	}
}

func TestNextItemWalksAndCompletes(t *testing.T) {
	ctx := context.Background()
	tr, records, store := openTestTracker(t)
	seedWorkset(t, store, records, "alice", "workset_001", assign.StatusInProgress)

	item, ok, err := tr.NextItem(ctx, "alice", "workset_001")
	if err != nil || !ok {
		t.Fatalf("first next item: ok=%v err=%v", ok, err)
	}
	if item.Row != 1 || item.Total != 2 || item.Done != 0 {
		t.Errorf("unexpected item: %+v", item)
	}
	if len(item.Fields) != 2 || item.Fields[1] != "alpha" {
		t.Errorf("unexpected fields: %v", item.Fields)
	}

	if err := tr.MarkItemDone(ctx, "alice", "workset_001", 1); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	item, ok, err = tr.NextItem(ctx, "alice", "workset_001")
	if err != nil || !ok {
		t.Fatalf("second next item: ok=%v err=%v", ok, err)
	}
	if item.Row != 2 || item.Done != 1 {
		t.Errorf("unexpected second item: %+v", item)
	}

	if err := tr.MarkItemDone(ctx, "alice", "workset_001", 2); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	_, ok, err = tr.NextItem(ctx, "alice", "workset_001")
	if err != nil {
		t.Fatalf("final next item: %v", err)
	}
	if ok {
		t.Fatal("expected no items left")
	}

	rows, _ := records.Load(ctx, "alice")
	if rows[0].Status != assign.StatusCompleted {
		t.Errorf("record status = %s, want completed", rows[0].Status)
	}
}

func TestNextItemPromotesFollowingWorkset(t *testing.T) {
	ctx := context.Background()
	tr, records, store := openTestTracker(t)
	seedWorkset(t, store, records, "alice", "workset_001", assign.StatusInProgress)
	seedWorkset(t, store, records, "alice", "workset_002", assign.StatusNotStarted)

	for row := 1; row <= 2; row++ {
		if err := tr.MarkItemDone(ctx, "alice", "workset_001", row); err != nil {
			t.Fatalf("mark done: %v", err)
		}
	}
	if _, ok, err := tr.NextItem(ctx, "alice", "workset_001"); ok || err != nil {
		t.Fatalf("drained workset: ok=%v err=%v", ok, err)
	}

	ws, err := tr.Current(ctx, "alice")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if ws != "workset_002" {
		t.Errorf("promoted workset = %s, want workset_002", ws)
	}
}

func TestSaveAnnotationPersistsAndMarksDone(t *testing.T) {
	ctx := context.Background()
	tr, records, store := openTestTracker(t)
	seedWorkset(t, store, records, "alice", "workset_001", assign.StatusInProgress)

	payload := json.RawMessage(`{"label":"good"}`)
	if err := tr.SaveAnnotation(ctx, "alice", "workset_001", 1, payload); err != nil {
		t.Fatalf("save annotation: %v", err)
	}

	data, err := store.Get(ctx, assign.AnnotationKey("alice", "workset_001", 1))
	if err != nil {
		t.Fatalf("annotation object missing: %v", err)
	}
	var obj struct {
		Worker  string          `json:"worker"`
		Row     int             `json:"row"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		t.Fatalf("decode annotation: %v", err)
	}
	if obj.Worker != "alice" || obj.Row != 1 || string(obj.Payload) != `{"label":"good"}` {
		t.Errorf("unexpected annotation: %+v", obj)
	}

	item, ok, err := tr.NextItem(ctx, "alice", "workset_001")
	if err != nil || !ok {
		t.Fatalf("next item after annotation: ok=%v err=%v", ok, err)
	}
	if item.Row != 2 {
		t.Errorf("next row = %d, want 2", item.Row)
	}
}

func TestRepairRebuildsMissingWorkFiles(t *testing.T) {
	ctx := context.Background()
	tr, records, store := openTestTracker(t)
	seedWorkset(t, store, records, "alice", "workset_001", assign.StatusInProgress)
	seedWorkset(t, store, records, "alice", "workset_002", assign.StatusNotStarted)

	if err := store.Delete(ctx, "results/alice/workset_002.csv"); err != nil {
		t.Fatalf("delete work file: %v", err)
	}

	rebuilt, err := tr.Repair(ctx, "alice")
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if len(rebuilt) != 1 || rebuilt[0] != "workset_002" {
		t.Fatalf("rebuilt = %v, want [workset_002]", rebuilt)
	}
	if _, err := store.Get(ctx, "results/alice/workset_002.csv"); err != nil {
		t.Errorf("work file still missing: %v", err)
	}
}
