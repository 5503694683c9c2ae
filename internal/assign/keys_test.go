package assign

import "testing"

func TestWorksetIDRoundTrip(t *testing.T) {
	if got := WorksetID(1); got != "workset_001" {
		t.Fatalf("WorksetID(1) = %q", got)
	}
	if got := WorksetID(100); got != "workset_100" {
		t.Fatalf("WorksetID(100) = %q", got)
	}
	n, ok := ParseWorksetID("workset_042")
	if !ok || n != 42 {
		t.Fatalf("parse workset_042: %d %v", n, ok)
	}
	for _, bad := range []string{"workset_000", "workset_1", "dataset_001", "workset_01a", ""} {
		if _, ok := ParseWorksetID(bad); ok {
			t.Fatalf("ParseWorksetID(%q) accepted", bad)
		}
	}
}

func TestWorkerFromRecordKey(t *testing.T) {
	if w := workerFromRecordKey("workers/alice/alice_record.csv"); w != "alice" {
		t.Fatalf("got %q", w)
	}
	for _, bad := range []string{
		"workers/alice/other.csv",
		"results/alice/workset_001.csv",
		"workers/alice_record.csv",
	} {
		if w := workerFromRecordKey(bad); w != "" {
			t.Fatalf("workerFromRecordKey(%q) = %q", bad, w)
		}
	}
}

func TestLockAndCompetitionKeys(t *testing.T) {
	if k := lockKey("workset_007"); k != "system/locks/workset_007_lock.json" {
		t.Fatalf("lockKey: %q", k)
	}
	if !isLockKey(lockKey("workset_007")) {
		t.Fatalf("isLockKey rejected a lock key")
	}
	ck := competitionKey("workset_007", "abc123")
	if ck != "system/locks/competition_workset_007_abc123.json" {
		t.Fatalf("competitionKey: %q", ck)
	}
	if isLockKey(ck) {
		t.Fatalf("competition key misread as lock")
	}
}

func TestDatasetAndResultKeys(t *testing.T) {
	if k := datasetKey("workset_003"); k != "worksets/dataset_003.csv" {
		t.Fatalf("datasetKey: %q", k)
	}
	if k := resultKey("bob", "workset_003"); k != "results/bob/workset_003.csv" {
		t.Fatalf("resultKey: %q", k)
	}
	if k := AnnotationKey("bob", "workset_003", 7); k != "annotations/bob/workset_003_7.json" {
		t.Fatalf("AnnotationKey: %q", k)
	}
}
