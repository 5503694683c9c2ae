// Package assign implements workset assignment over a shared blob store.
//
// A fixed pool of worksets (workset_001..workset_NNN) is handed out to
// workers under two hard rules: each workset is assigned to at most UsageCap
// distinct workers over its lifetime, and a worker who has completed a
// workset is never assigned it again. The only coordination medium is a
// key-addressed store with get/put/delete/list (no CAS, no lock service),
// so mutual exclusion is built from an announce/settle/confirm competition
// over advisory lock objects.
//
// # Keyspace
//
//	system/workset_usage.json                         - usage ledger
//	system/locks/{workset}_lock.json                  - formal lock
//	system/locks/competition_{workset}_{cid}.json     - competition bid
//	system/assignment_log.csv                         - append-only audit log
//	workers/{worker}/{worker}_record.csv              - worker task record
//	worksets/dataset_{NNN}.csv                        - static dataset content
//	results/{worker}/{workset}.csv                    - materialized work file
//	annotations/{worker}/{workset}_{row}.json         - per-item results
//
// # Assignment lifecycle
//
//  1. Scan: read the ledger, walk workset ids in ascending order, pick the
//     first id under the cap that the worker has not completed.
//  2. Lock: enter a competition for that id; the earliest bid wins and writes
//     a formal lock with a lease expiry. Losers back off and re-scan.
//  3. Verify: re-read the ledger under the lock; the landscape may have
//     changed between scan and acquisition.
//  4. Commit: re-check completion, count real usage by scanning every task
//     record, increment the ledger, append the record row, materialize the
//     work file, append the audit row. Each step validates before the next;
//     failures roll back in reverse order.
//  5. Release: delete the lock if still owned.
//
// A crashed holder's lock expires after the lease duration and is swept by
// any later caller; that sweep is the sole liveness mechanism.
//
// Every read goes to the store. Nothing is cached across requests, so every
// mutation is a fresh-read-then-write against shared state.
package assign
