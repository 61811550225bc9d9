package cli

import (
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatsCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print chunk index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closeMgr, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer closeMgr()

			s, err := mgr.Stats(cmd.Context())
			if err != nil {
				return err
			}

			p := newPrinter(outputFormat(cmd))
			if outputFormat(cmd) == "json" {
				return p.json(s)
			}
			p.kv([][2]string{
				{"chunks", strconv.Itoa(s.Chunks)},
				{"hot", strconv.Itoa(s.HotChunks)},
				{"cold", strconv.Itoa(s.ColdChunks)},
				{"gc_pending", strconv.Itoa(s.GCPending)},
			})
			return nil
		},
	}
	return cmd
}
