package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendPebble = "pebble"
	BackendNATS   = "nats"
	BackendMemory = "memory"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Store  StoreConfig  `json:"store" yaml:"store"`
	Assign AssignConfig `json:"assign" yaml:"assign"`
}

// StoreConfig selects and parameterizes the shared store backend.
type StoreConfig struct {
	Backend string `json:"backend" yaml:"backend"`
	// DataDir holds the pebble database when Backend is "pebble". Empty
	// means the OS-specific default data directory.
	DataDir string `json:"dataDir" yaml:"dataDir"`
	// Fsync is the pebble sync mode: always|interval|never.
	Fsync string `json:"fsync" yaml:"fsync"`
	// NATSURL and Bucket locate the jetstream KV when Backend is "nats".
	NATSURL string `json:"natsUrl" yaml:"natsUrl"`
	Bucket  string `json:"bucket" yaml:"bucket"`
}

// AssignConfig parameterizes the assignment subsystem.
type AssignConfig struct {
	WorksetCount   int      `json:"worksetCount" yaml:"worksetCount"`
	UsageCap       int      `json:"usageCap" yaml:"usageCap"`
	MaxAttempts    int      `json:"maxAttempts" yaml:"maxAttempts"`
	DriftThreshold int      `json:"driftThreshold" yaml:"driftThreshold"`
	LeaseDuration  Duration `json:"leaseDuration" yaml:"leaseDuration"`
	SettleMin      Duration `json:"settleMin" yaml:"settleMin"`
	SettleMax      Duration `json:"settleMax" yaml:"settleMax"`
}

// Duration unmarshals from "2m"-style strings in both JSON and YAML.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Backend: BackendPebble,
			Fsync:   "always",
			NATSURL: "nats://127.0.0.1:4222",
			Bucket:  "worksets",
		},
		Assign: AssignConfig{
			WorksetCount:   100,
			UsageCap:       3,
			MaxAttempts:    5,
			DriftThreshold: 1,
			LeaseDuration:  Duration(2 * time.Minute),
			SettleMin:      Duration(500 * time.Millisecond),
			SettleMax:      Duration(1500 * time.Millisecond),
		},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Store.Backend {
	case BackendPebble, BackendNATS, BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Assign.WorksetCount < 1 {
		return fmt.Errorf("worksetCount must be positive, got %d", c.Assign.WorksetCount)
	}
	if c.Assign.UsageCap < 1 {
		return fmt.Errorf("usageCap must be positive, got %d", c.Assign.UsageCap)
	}
	if c.Assign.SettleMax < c.Assign.SettleMin {
		return fmt.Errorf("settleMax %s below settleMin %s", c.Assign.SettleMax, c.Assign.SettleMin)
	}
	return nil
}
