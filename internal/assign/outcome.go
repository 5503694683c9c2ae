package assign

// Result classifies the terminal state of one assignment request.
type Result int

const (
	// ResultAssigned means a workset was committed to the worker.
	ResultAssigned Result = iota
	// ResultPending means the worker already holds unfinished work and no
	// new assignment was attempted.
	ResultPending
	// ResultExhausted means no eligible workset exists: every workset is at
	// the usage cap or already completed by this worker.
	ResultExhausted
	// ResultUnavailable means the attempt failed transiently (lost
	// competitions, store errors) and may succeed if retried later.
	ResultUnavailable
)

// String returns the metrics label for the result.
func (r Result) String() string {
	switch r {
	case ResultAssigned:
		return "assigned"
	case ResultPending:
		return "pending"
	case ResultExhausted:
		return "exhausted"
	case ResultUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of a Request call. Callers must treat every
// variant as a valid terminal state; only ResultUnavailable suggests retrying.
type Outcome struct {
	Result  Result
	Workset string // set only when Result == ResultAssigned
	Reason  string // human-readable explanation for non-assigned results
}

func assigned(workset string) Outcome {
	return Outcome{Result: ResultAssigned, Workset: workset}
}

func pending(reason string) Outcome {
	return Outcome{Result: ResultPending, Reason: reason}
}

func exhausted(reason string) Outcome {
	return Outcome{Result: ResultExhausted, Reason: reason}
}

func unavailable(reason string) Outcome {
	return Outcome{Result: ResultUnavailable, Reason: reason}
}
