// Package id provides a 128-bit, lexicographically sortable identifier used
// to tag lock-competition bids.
//
// # Format
//
// The ID is 16 bytes big-endian: [8 bytes ms_timestamp][4 bytes sequence]
// [4 bytes random]. Byte-wise comparison preserves chronological order;
// the random tail disambiguates bids minted in the same millisecond by
// independent processes that share no sequence counter.
//
// # Monotonicity
//
// The Generator ensures per-process monotonicity:
//   - If the system clock regresses, it pins to the last seen millisecond and
//     increments the sequence to avoid going backwards.
//   - If the sequence would overflow within a millisecond, it waits for the
//     next millisecond before emitting the next ID.
package id
