// Package storage defines the blob-store contract shared by all worksets
// components.
//
// The store is plain key-addressed object storage: per-key get/put/delete and
// list-by-prefix. It deliberately offers no compare-and-swap or conditional
// put; the assignment core layers its own coordination (lock competition,
// fresh-read-then-write) on top of these four operations so that any backend
// meeting this contract can host a deployment.
//
// Backends live in subpackages: pebblestore (local disk), natskv (shared NATS
// JetStream KV bucket), memstore (in-process, for tests).
package storage
