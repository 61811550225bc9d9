package cli

import (
	"log/slog"
	"sort"

	"github.com/spf13/cobra"
)

func newListCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every file path with at least one saved version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closeMgr, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer closeMgr()

			files, err := mgr.ListFiles(cmd.Context())
			if err != nil {
				return err
			}
			sort.Strings(files)

			p := newPrinter(outputFormat(cmd))
			if outputFormat(cmd) == "json" {
				return p.json(files)
			}
			rows := make([][]string, len(files))
			for i, f := range files {
				rows[i] = []string{f}
			}
			p.table([]string{"PATH"}, rows)
			return nil
		},
	}
	return cmd
}
