package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rzbill/worksets/internal/assign"
	"github.com/rzbill/worksets/pkg/log"
)

// newRequestCommand constructs the `worksets request` subcommand.
func newRequestCommand(logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request a new workset assignment",
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

			out := rt.Assigner().Request(cmd.Context(), worker)
			w := cmd.OutOrStdout()
			switch out.Result {
			case assign.ResultAssigned:
				fmt.Fprintf(w, "assigned: %s\n", out.Workset)
			case assign.ResultPending:
				fmt.Fprintf(w, "pending: %s\n", out.Reason)
			case assign.ResultExhausted:
				fmt.Fprintf(w, "exhausted: %s\n", out.Reason)
			default:
				return fmt.Errorf("unavailable: %s", out.Reason)
			}
			return nil
		},
	}
	cmd.Flags().String("worker", "", "Worker name")
	return cmd
}
