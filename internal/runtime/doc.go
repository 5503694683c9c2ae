// Package runtime wires the store backend, config, and subsystem facades
// into a single worksets instance. It exposes Open/Close, a basic health
// check, and the assigner and tracker used by the CLI.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(context.Background(), runtime.Options{Config: cfg, Logger: logger})
//	defer rt.Close()
//	out := rt.Assigner().Request(ctx, "alice")
package runtime
