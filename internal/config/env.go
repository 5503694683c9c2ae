package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays WORKSETS_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("WORKSETS_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("WORKSETS_DATA_DIR"); v != "" {
		cfg.Store.DataDir = v
	}
	if v := os.Getenv("WORKSETS_FSYNC"); v != "" {
		cfg.Store.Fsync = v
	}
	if v := os.Getenv("WORKSETS_NATS_URL"); v != "" {
		cfg.Store.NATSURL = v
	}
	if v := os.Getenv("WORKSETS_BUCKET"); v != "" {
		cfg.Store.Bucket = v
	}
	if v := os.Getenv("WORKSETS_WORKSET_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Assign.WorksetCount = n
		}
	}
	if v := os.Getenv("WORKSETS_USAGE_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Assign.UsageCap = n
		}
	}
	if v := os.Getenv("WORKSETS_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Assign.MaxAttempts = n
		}
	}
	if v := os.Getenv("WORKSETS_DRIFT_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Assign.DriftThreshold = n
		}
	}
	if v := os.Getenv("WORKSETS_LEASE_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Assign.LeaseDuration = Duration(d)
		}
	}
	if v := os.Getenv("WORKSETS_SETTLE_MIN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Assign.SettleMin = Duration(d)
		}
	}
	if v := os.Getenv("WORKSETS_SETTLE_MAX"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Assign.SettleMax = Duration(d)
		}
	}
}
