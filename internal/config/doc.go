// Package config provides loading and environment overlay for worksets
// configuration. It exposes a Default() baseline, file loading from JSON or
// YAML, and a WORKSETS_* env overlay.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/worksets.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
package config
