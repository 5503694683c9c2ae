package pebblestore

import (
	"context"
	"testing"

	"github.com/rzbill/worksets/internal/storage"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Options{DataDir: t.TempDir(), Fsync: FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Get(context.Background(), "absent")
	if !storage.IsNotFound(err) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPutGetDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.Put(ctx, "a/b", []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := db.Get(ctx, "a/b")
	if err != nil || string(got) != "v" {
		t.Fatalf("get: %q %v", got, err)
	}
	if err := db.Delete(ctx, "a/b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get(ctx, "a/b"); !storage.IsNotFound(err) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
	// deleting again is not an error
	if err := db.Delete(ctx, "a/b"); err != nil {
		t.Fatalf("re-delete: %v", err)
	}
}

func TestListByPrefix(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	for _, k := range []string{"system/locks/a", "system/locks/b", "system/other", "workers/x"} {
		if err := db.Put(ctx, k, []byte("1")); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	keys, err := db.List(ctx, "system/locks/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 || keys[0] != "system/locks/a" || keys[1] != "system/locks/b" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}
