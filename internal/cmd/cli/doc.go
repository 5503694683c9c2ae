// Package cli contains the Cobra commands behind the worksets binary.
//
// Every command opens a Runtime from the resolved configuration, performs
// one operation against the shared store, and exits; nothing stays resident
// between invocations. Coordination state lives entirely in the store, so
// concurrent invocations from different hosts are safe.
package cli
