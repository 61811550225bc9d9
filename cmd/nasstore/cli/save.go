package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func newSaveCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save <path> [source-file]",
		Short: "Save a new version of a file, reading from source-file or stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closeMgr, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer closeMgr()

			var r = os.Stdin
			if len(args) == 2 {
				f, err := os.Open(args[1])
				if err != nil {
					return fmt.Errorf("open source file: %w", err)
				}
				defer f.Close()
				r = f
			}

			v, err := mgr.SaveVersion(cmd.Context(), args[0], r)
			if err != nil {
				return err
			}

			p := newPrinter(outputFormat(cmd))
			if outputFormat(cmd) == "json" {
				return p.json(v)
			}
			p.kv([][2]string{
				{"file", v.FilePath},
				{"version", v.ID.String()},
				{"size", fmt.Sprintf("%d", v.Delta.Size)},
				{"chunks", fmt.Sprintf("%d", len(v.Delta.Chunks))},
			})
			return nil
		},
	}
	return cmd
}
