package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rzbill/worksets/pkg/log"
)

// newLedgerCommand constructs the `worksets ledger` command group.
func newLedgerCommand(logger log.Logger) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Usage ledger operations",
	}
	ledgerCmd.AddCommand(newLedgerShowCommand(logger), newLedgerRebuildCommand(logger))
	return ledgerCmd
}

func newLedgerShowCommand(logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show per-workset usage and pool summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			usage, err := rt.Assigner().Ledger().Counts(ctx)
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(usage))
			for id := range usage {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			w := cmd.OutOrStdout()
			for _, id := range ids {
				fmt.Fprintf(w, "%s\t%d\n", id, usage[id])
			}

			summary, err := rt.Assigner().Ledger().Summarize(ctx, rt.Config().Assign.WorksetCount)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "total: %d  unused: %d  partial: %d  saturated: %d\n",
				summary.TotalWorksets, summary.Unused, summary.PartiallyUsed, summary.Saturated)
			return nil
		},
	}
}

func newLedgerRebuildCommand(logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Discard the ledger and rebuild it from task records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			usage, err := rt.Assigner().Ledger().ForceRegenerate(cmd.Context())
			if err != nil {
				return err
			}
			total := 0
			for _, n := range usage {
				total += n
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt: %d worksets, %d assignments\n", len(usage), total)
			return nil
		},
	}
}
