package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newGCCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Run one mark-and-sweep garbage collection pass immediately",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closeMgr, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer closeMgr()
			return mgr.RunGC(cmd.Context())
		},
	}
	return cmd
}

func newTierCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tier",
		Short: "Run one hot/cold tier sweep immediately",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closeMgr, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer closeMgr()
			moved, err := mgr.RunTierSweep(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("tier sweep complete", "moved", moved)
			return nil
		},
	}
	return cmd
}
