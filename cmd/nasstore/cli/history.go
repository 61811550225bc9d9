package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newHistoryCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <path>",
		Short: "List every saved version of a file, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closeMgr, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer closeMgr()

			versions, err := mgr.ListVersions(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			p := newPrinter(outputFormat(cmd))
			if outputFormat(cmd) == "json" {
				return p.json(versions)
			}
			rows := make([][]string, len(versions))
			for i, v := range versions {
				rows[i] = []string{
					v.ID.String(),
					v.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
					fmt.Sprintf("%d", v.Delta.Size),
					fmt.Sprintf("%d", len(v.Delta.Chunks)),
					fmt.Sprintf("%d", v.Depth),
				}
			}
			p.table([]string{"VERSION", "CREATED", "SIZE", "CHUNKS", "DEPTH"}, rows)
			return nil
		},
	}
	return cmd
}
