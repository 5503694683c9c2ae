package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/rzbill/worksets/internal/config"
	"github.com/rzbill/worksets/internal/metrics"
	"github.com/rzbill/worksets/internal/runtime"
	"github.com/rzbill/worksets/pkg/log"
)

// NewRootCommand constructs the worksets root command and all subcommands.
func NewRootCommand(logger log.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "worksets",
		Short: "Workset assignment CLI",
		Long: `Coordinates a pool of worksets across concurrent workers through a
shared blob store. Each workset is held by at most three workers over its
lifetime and a completed workset is never re-offered.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", os.Getenv("WORKSETS_CONFIG"), "Config file (JSON or YAML)")

	root.AddCommand(
		newRequestCommand(logger),
		newLedgerCommand(logger),
		newLocksCommand(logger),
		newRecordCommand(logger),
		newWorkCommand(logger),
		newAuditCommand(logger),
	)
	return root
}

// openRuntime resolves config (file, then env overlay) and opens a Runtime.
func openRuntime(cmd *cobra.Command, logger log.Logger) (*runtime.Runtime, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	config.FromEnv(&cfg)
	return runtime.Open(cmd.Context(), runtime.Options{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewPrometheus(nil, ""),
	})
}

// workerFlag reads the required --worker flag.
func workerFlag(cmd *cobra.Command) (string, error) {
	worker, _ := cmd.Flags().GetString("worker")
	if worker == "" {
		return "", errors.New("--worker is required")
	}
	return worker, nil
}
