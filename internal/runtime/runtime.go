package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rzbill/worksets/internal/assign"
	"github.com/rzbill/worksets/internal/config"
	"github.com/rzbill/worksets/internal/metrics"
	"github.com/rzbill/worksets/internal/progress"
	"github.com/rzbill/worksets/internal/storage"
	"github.com/rzbill/worksets/internal/storage/memstore"
	"github.com/rzbill/worksets/internal/storage/natskv"
	"github.com/rzbill/worksets/internal/storage/pebblestore"
	"github.com/rzbill/worksets/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config  config.Config
	Logger  log.Logger
	Metrics metrics.Collector
}

// Runtime wires the store backend and subsystem facades for one instance.
type Runtime struct {
	store    storage.Store
	config   config.Config
	assigner *assign.Assigner
	tracker  *progress.Tracker
}

// Open initializes the configured store backend and returns a Runtime.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	collector := opts.Metrics
	if collector == nil {
		collector = metrics.NewNop()
	}

	store, err := openStore(ctx, opts.Config.Store)
	if err != nil {
		return nil, err
	}

	cfg := opts.Config.Assign
	assigner := assign.New(store, assign.Options{
		WorksetCount:   cfg.WorksetCount,
		UsageCap:       cfg.UsageCap,
		MaxAttempts:    cfg.MaxAttempts,
		DriftThreshold: cfg.DriftThreshold,
		Locks: assign.LockOptions{
			LeaseDuration: cfg.LeaseDuration.Std(),
			SettleMin:     cfg.SettleMin.Std(),
			SettleMax:     cfg.SettleMax.Std(),
		},
	}, logger, collector)

	return &Runtime{
		store:    store,
		config:   opts.Config,
		assigner: assigner,
		tracker:  progress.NewTracker(store, logger),
	}, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendPebble:
		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir = config.DefaultDataDir()
		}
		mode := pebblestore.FsyncModeAlways
		switch cfg.Fsync {
		case "", "always":
		case "interval":
			mode = pebblestore.FsyncModeInterval
		case "never":
			mode = pebblestore.FsyncModeNever
		default:
			return nil, fmt.Errorf("invalid fsync mode %q", cfg.Fsync)
		}
		return pebblestore.Open(pebblestore.Options{DataDir: dataDir, Fsync: mode})
	case config.BackendNATS:
		return natskv.Open(ctx, natskv.Options{URL: cfg.NATSURL, Bucket: cfg.Bucket})
	case config.BackendMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Close closes the underlying store when it holds resources.
func (r *Runtime) Close() error {
	if c, ok := r.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// CheckHealth verifies the store answers a cheap read.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.store == nil {
		return errors.New("store not open")
	}
	_, err := r.store.List(ctx, "system/")
	return err
}

// Store exposes the shared store for direct object access.
func (r *Runtime) Store() storage.Store { return r.store }

// Config returns the runtime configuration.
func (r *Runtime) Config() config.Config { return r.config }

// Assigner returns the workset assigner.
func (r *Runtime) Assigner() *assign.Assigner { return r.assigner }

// Tracker returns the per-worker progress tracker.
func (r *Runtime) Tracker() *progress.Tracker { return r.tracker }
