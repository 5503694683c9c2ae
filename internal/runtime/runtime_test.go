package runtime

import (
	"context"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/worksets/internal/config"
)

func TestOpenCloseHealth(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Store.Backend = cfgpkg.BackendPebble
	cfg.Store.DataDir = t.TempDir()

	rt, err := Open(context.Background(), Options{Config: cfg})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if rt.Assigner() == nil || rt.Tracker() == nil {
		t.Fatal("facades not wired")
	}
}

func TestOpenMemoryBackend(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Store.Backend = cfgpkg.BackendMemory
	cfg.Assign.SettleMin = cfgpkg.Duration(time.Millisecond)
	cfg.Assign.SettleMax = cfgpkg.Duration(2 * time.Millisecond)

	rt, err := Open(context.Background(), Options{Config: cfg})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()

	ctx := context.Background()
	if err := rt.Store().Put(ctx, "worksets/dataset_001.csv", []byte("id,text\n1,alpha\n")); err != nil {
		t.Fatalf("seed dataset: %v", err)
	}
	out := rt.Assigner().Request(ctx, "alice")
	if out.Workset != "workset_001" {
		t.Fatalf("request through runtime got %s/%s", out.Result, out.Workset)
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Store.Backend = "redis"
	if _, err := Open(context.Background(), Options{Config: cfg}); err == nil {
		t.Fatal("expected unknown backend to fail")
	}
}
