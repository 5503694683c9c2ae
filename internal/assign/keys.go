package assign

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Key prefixes for store-resident objects.
const (
	prefixLocks       = "system/locks/"
	prefixWorkers     = "workers/"
	prefixWorksets    = "worksets/"
	prefixResults     = "results/"
	prefixAnnotations = "annotations/"

	ledgerKey   = "system/workset_usage.json"
	auditLogKey = "system/assignment_log.csv"
)

var worksetIDPattern = regexp.MustCompile(`^workset_(\d{3})$`)

// WorksetID formats the n-th workset id. Ids are 1-based: WorksetID(1) is
// "workset_001".
func WorksetID(n int) string {
	return fmt.Sprintf("workset_%03d", n)
}

// ParseWorksetID extracts the numeric suffix of a workset id, or 0 and false
// when the id is malformed.
func ParseWorksetID(id string) (int, bool) {
	m := worksetIDPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// recordKey returns the task record key for a worker.
// Format: workers/{worker}/{worker}_record.csv
func recordKey(worker string) string {
	return prefixWorkers + worker + "/" + worker + "_record.csv"
}

// workerFromRecordKey extracts the worker name from a record key, or "" for
// keys that are not record objects.
func workerFromRecordKey(key string) string {
	if !strings.HasPrefix(key, prefixWorkers) || !strings.HasSuffix(key, "_record.csv") {
		return ""
	}
	rest := strings.TrimPrefix(key, prefixWorkers)
	slash := strings.IndexByte(rest, '/')
	if slash <= 0 {
		return ""
	}
	return rest[:slash]
}

// datasetKey returns the static dataset key backing a workset.
// Format: worksets/dataset_{NNN}.csv
func datasetKey(workset string) string {
	return prefixWorksets + "dataset_" + strings.TrimPrefix(workset, "workset_") + ".csv"
}

// resultKey returns a worker's materialized copy of a workset.
// Format: results/{worker}/{workset}.csv
func resultKey(worker, workset string) string {
	return prefixResults + worker + "/" + workset + ".csv"
}

// resultPrefix returns the prefix holding all of a worker's materialized files.
func resultPrefix(worker string) string {
	return prefixResults + worker + "/"
}

// AnnotationKey returns the per-item annotation object key.
// Format: annotations/{worker}/{workset}_{row}.json
func AnnotationKey(worker, workset string, row int) string {
	return fmt.Sprintf("%s%s/%s_%d.json", prefixAnnotations, worker, workset, row)
}

// lockKey returns the formal lock key for a workset.
// Format: system/locks/{workset}_lock.json
func lockKey(workset string) string {
	return prefixLocks + workset + "_lock.json"
}

// competitionKey returns a bid key for a workset competition.
// Format: system/locks/competition_{workset}_{cid}.json
func competitionKey(workset, competitionID string) string {
	return prefixLocks + "competition_" + workset + "_" + competitionID + ".json"
}

// competitionPrefix returns the prefix shared by all bids for a workset.
func competitionPrefix(workset string) string {
	return prefixLocks + "competition_" + workset + "_"
}

// isLockKey reports whether key is a formal lock object.
func isLockKey(key string) bool {
	return strings.HasPrefix(key, prefixLocks) && strings.HasSuffix(key, "_lock.json")
}
