package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzbill/worksets/pkg/log"
)

// newRecordCommand constructs the `worksets record` command group.
func newRecordCommand(logger log.Logger) *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Task record operations",
	}
	recordCmd.PersistentFlags().String("worker", "", "Worker name")
	recordCmd.AddCommand(newRecordShowCommand(logger), newRecordRepairCommand(logger))
	return recordCmd
}

func newRecordShowCommand(logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show a worker's task record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			worker, err := workerFlag(cmd)
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			rows, err := rt.Assigner().Records().Load(cmd.Context(), worker)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(w, "no record")
				return nil
			}
			for _, row := range rows {
				assignedAt := ""
				if !row.AssignedAt.IsZero() {
					assignedAt = row.AssignedAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.Workset, row.Status, assignedAt, row.AssignmentType)
			}
			return nil
		},
	}
}

func newRecordRepairCommand(logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Re-materialize missing work files for a worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			worker, err := workerFlag(cmd)
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			rebuilt, err := rt.Tracker().Repair(cmd.Context(), worker)
			if err != nil {
				return err
			}
			if len(rebuilt) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to repair")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt: %s\n", strings.Join(rebuilt, ", "))
			return nil
		},
	}
}
