package cli

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/rzbill/worksets/internal/assign"
)

// auditFilter wraps a compiled CEL program evaluated against audit rows.
// When disabled, Match always returns true.
type auditFilter struct {
	prog    cel.Program
	enabled bool
}

func newAuditFilter(expr string) (auditFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return auditFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("worker", cel.StringType),
		cel.Variable("workset", cel.StringType),
		cel.Variable("assignment_type", cel.StringType),
		cel.Variable("success", cel.BoolType),
		cel.Variable("ts_ms", cel.IntType),
		// Current time in ms for windowed filters
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return auditFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return auditFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return auditFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return auditFilter{}, err
	}
	return auditFilter{prog: prog, enabled: true}, nil
}

// Match evaluates the expression against one audit entry. When disabled,
// returns true; evaluation errors count as no match.
func (f auditFilter) Match(e assign.AuditEntry) bool {
	if !f.enabled {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"worker":          e.Worker,
		"workset":         e.Workset,
		"assignment_type": e.AssignmentType,
		"success":         e.Success,
		"ts_ms":           e.Timestamp.UnixMilli(),
		"now_ms":          time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
