// Package progress drives a worker through an assigned workset item by item.
//
// It layers on the assignment store objects: the task record names which
// worksets a worker holds, the materialized work file carries the per-item
// Progress column, and annotations land as one JSON object per finished
// item. The tracker owns the promotion rules: at most one in_progress
// workset per worker, promoted from the oldest not_started row, and a
// workset whose items are all done is marked completed.
package progress
