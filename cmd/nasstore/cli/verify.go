package cli

import (
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"
)

func newVerifyCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Scrub every chunk, recomputing its content hash to detect corruption",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closeMgr, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer closeMgr()

			result, err := mgr.RunVerify(cmd.Context())
			if err != nil {
				return err
			}

			p := newPrinter(outputFormat(cmd))
			if outputFormat(cmd) == "json" {
				return p.json(result)
			}
			p.kv([][2]string{
				{"scanned", strconv.Itoa(result.Scanned)},
				{"quarantined", strconv.Itoa(result.Quarantined)},
			})
			return nil
		},
	}
	return cmd
}
