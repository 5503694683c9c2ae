package cli

import (
	"testing"
	"time"

	"github.com/rzbill/worksets/internal/assign"
)

func TestAuditFilterDisabled(t *testing.T) {
	f, err := newAuditFilter("")
	if err != nil {
		t.Fatalf("empty filter: %v", err)
	}
	if !f.Match(assign.AuditEntry{Worker: "anyone"}) {
		t.Error("disabled filter rejected an entry")
	}
}

func TestAuditFilterMatch(t *testing.T) {
	f, err := newAuditFilter(`worker == "alice" && success`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Match(assign.AuditEntry{Worker: "alice", Success: true}) {
		t.Error("matching entry rejected")
	}
	if f.Match(assign.AuditEntry{Worker: "alice", Success: false}) {
		t.Error("failed assignment matched success filter")
	}
	if f.Match(assign.AuditEntry{Worker: "bob", Success: true}) {
		t.Error("other worker matched")
	}
}

func TestAuditFilterTimeWindow(t *testing.T) {
	f, err := newAuditFilter(`now_ms - ts_ms < 60000`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Match(assign.AuditEntry{Timestamp: time.Now()}) {
		t.Error("recent entry rejected")
	}
	if f.Match(assign.AuditEntry{Timestamp: time.Now().Add(-time.Hour)}) {
		t.Error("old entry matched one-minute window")
	}
}

func TestAuditFilterBadExpression(t *testing.T) {
	if _, err := newAuditFilter(`worker ==`); err == nil {
		t.Error("expected parse error")
	}
	if _, err := newAuditFilter(`unknown_var == 1`); err == nil {
		t.Error("expected check error for unknown variable")
	}
}
