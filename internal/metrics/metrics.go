// Package metrics provides the instrumentation surface for the assignment
// core, with a Prometheus-backed collector for deployments and a nop
// collector for tests.
package metrics

// Collector receives counters from the assignment core. Implementations must
// be safe for concurrent use.
type Collector interface {
	// AssignmentResult records the terminal outcome of one Request call:
	// "assigned", "exhausted", "pending", or "unavailable".
	AssignmentResult(result string)
	// CompetitionOutcome records one lock competition from this process's
	// perspective: "won" or "lost".
	CompetitionOutcome(outcome string)
	// Rollback records one compensating rollback during commit.
	Rollback()
	// LedgerRebuild records one full regeneration of the usage ledger.
	LedgerRebuild()
	// LocksSwept records expired locks removed by a sweep.
	LocksSwept(n int)
}

// Nop is a Collector that discards everything.
type Nop struct{}

// NewNop returns a no-op Collector.
func NewNop() *Nop { return &Nop{} }

func (*Nop) AssignmentResult(string)   {}
func (*Nop) CompetitionOutcome(string) {}
func (*Nop) Rollback()                 {}
func (*Nop) LedgerRebuild()            {}
func (*Nop) LocksSwept(int)            {}

var _ Collector = (*Nop)(nil)
