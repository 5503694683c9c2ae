package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzbill/worksets/pkg/log"
)

// newAuditCommand constructs the `worksets audit` subcommand.
func newAuditCommand(logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List assignment audit entries",
		Long: `Lists the assignment audit log. --filter takes a CEL expression over
worker, workset, assignment_type, success, ts_ms, and now_ms, e.g.:

  worksets audit --filter 'worker == "alice" && success'
  worksets audit --filter 'now_ms - ts_ms < 86400000'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			expr, _ := cmd.Flags().GetString("filter")
			filter, err := newAuditFilter(expr)
			if err != nil {
				return fmt.Errorf("invalid --filter: %w", err)
			}
			rt, err := openRuntime(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			entries, err := rt.Assigner().Audit().List(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			matched := 0
			for _, e := range entries {
				if !filter.Match(e) {
					continue
				}
				matched++
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
					e.Timestamp.UTC().Format(time.RFC3339), e.Worker, e.Workset, e.AssignmentType, e.Success)
			}
			if matched == 0 {
				fmt.Fprintln(w, "no entries")
			}
			return nil
		},
	}
	cmd.Flags().String("filter", "", "CEL expression to filter entries")
	return cmd
}
