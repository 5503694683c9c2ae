// Package pebblestore implements the storage.Store contract over a local
// Pebble database.
//
// It is the single-host backend: suitable for tests, development, and
// deployments where every worker process shares one data directory. The
// wrapper keeps Pebble's durability knobs (fsync always/interval/never)
// behind Options and exposes prefix listing via a bounded iterator.
package pebblestore
