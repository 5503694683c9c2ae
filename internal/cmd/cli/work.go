package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rzbill/worksets/internal/progress"
	"github.com/rzbill/worksets/pkg/log"
)

// newWorkCommand constructs the `worksets work` command group: the item-level
// loop a worker runs inside an assigned workset.
func newWorkCommand(logger log.Logger) *cobra.Command {
	workCmd := &cobra.Command{
		Use:   "work",
		Short: "Item-level progression inside an assigned workset",
	}
	workCmd.PersistentFlags().String("worker", "", "Worker name")
	workCmd.AddCommand(
		newWorkCurrentCommand(logger),
		newWorkNextCommand(logger),
		newWorkDoneCommand(logger),
		newWorkAnnotateCommand(logger),
	)
	return workCmd
}

func newWorkCurrentCommand(logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the active workset, promoting a not-started one if needed",
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

			ws, err := rt.Tracker().Current(cmd.Context(), worker)
			if errors.Is(err, progress.ErrNoActive) {
				fmt.Fprintln(cmd.OutOrStdout(), "no active workset; run `worksets request`")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ws)
			return nil
		},
	}
}

func newWorkNextCommand(logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the next undone item of the active workset",
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

			ctx := cmd.Context()
			ws, err := rt.Tracker().Current(ctx, worker)
			if errors.Is(err, progress.ErrNoActive) {
				fmt.Fprintln(cmd.OutOrStdout(), "no active workset; run `worksets request`")
				return nil
			}
			if err != nil {
				return err
			}

			item, ok, err := rt.Tracker().NextItem(ctx, worker, ws)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintf(w, "%s complete (%d items)\n", ws, item.Total)
				return nil
			}
			fmt.Fprintf(w, "%s row %d (%d/%d done)\n", ws, item.Row, item.Done, item.Total)
			fmt.Fprintln(w, strings.Join(item.Fields, "\t"))
			return nil
		},
	}
}

func newWorkDoneCommand(logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "done",
		Short: "Mark one item of the active workset done",
		RunE: func(cmd *cobra.Command, _ []string) error {
			worker, err := workerFlag(cmd)
			if err != nil {
				return err
			}
			row, _ := cmd.Flags().GetInt("row")
			if row < 1 {
				return errors.New("--row must be a 1-based item number")
			}
			rt, err := openRuntime(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			ws, err := rt.Tracker().Current(ctx, worker)
			if err != nil {
				return err
			}
			if err := rt.Tracker().MarkItemDone(ctx, worker, ws, row); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s row %d done\n", ws, row)
			return nil
		},
	}
	cmd.Flags().Int("row", 0, "Item row number (1-based)")
	return cmd
}

func newWorkAnnotateCommand(logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Save a JSON result for one item and mark it done",
		RunE: func(cmd *cobra.Command, _ []string) error {
			worker, err := workerFlag(cmd)
			if err != nil {
				return err
			}
			row, _ := cmd.Flags().GetInt("row")
			if row < 1 {
				return errors.New("--row must be a 1-based item number")
			}
			payload, _ := cmd.Flags().GetString("payload")
			if !json.Valid([]byte(payload)) {
				return fmt.Errorf("--payload is not valid JSON")
			}
			rt, err := openRuntime(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			ws, err := rt.Tracker().Current(ctx, worker)
			if err != nil {
				return err
			}
			if err := rt.Tracker().SaveAnnotation(ctx, worker, ws, row, json.RawMessage(payload)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s row %d annotated\n", ws, row)
			return nil
		},
	}
	cmd.Flags().Int("row", 0, "Item row number (1-based)")
	cmd.Flags().String("payload", "{}", "JSON result payload")
	return cmd
}
