package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"nasstore/internal/version"
)

func newRemoveCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <path> <version>",
		Short: "Delete a single version of a file (its chunks are reclaimed by the first gc run after the grace period)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closeMgr, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer closeMgr()

			id, err := version.ParseID(args[1])
			if err != nil {
				return fmt.Errorf("parse version: %w", err)
			}
			return mgr.DeleteVersion(cmd.Context(), args[0], id)
		},
	}
	return cmd
}
