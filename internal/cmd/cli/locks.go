package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rzbill/worksets/pkg/log"
)

// newLocksCommand constructs the `worksets locks` command group.
func newLocksCommand(logger log.Logger) *cobra.Command {
	locksCmd := &cobra.Command{
		Use:   "locks",
		Short: "Lock maintenance",
	}
	locksCmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Delete formal locks whose lease has expired",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			removed, err := rt.Assigner().Locks().SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "swept: %d\n", removed)
			return nil
		},
	})
	return locksCmd
}
