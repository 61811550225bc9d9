package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"nasstore/internal/version"
)

func newReadCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <path>",
		Short: "Write the current (or a specific) version of a file to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closeMgr, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer closeMgr()

			versionFlag, _ := cmd.Flags().GetString("version")

			var data []byte
			if versionFlag == "" {
				data, _, err = mgr.ReadCurrent(cmd.Context(), args[0])
			} else {
				var id version.ID
				id, err = version.ParseID(versionFlag)
				if err != nil {
					return fmt.Errorf("parse --version: %w", err)
				}
				var versions []version.Version
				versions, err = mgr.ListVersions(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				found := false
				for _, v := range versions {
					if v.ID == id {
						data, err = mgr.ReadVersion(cmd.Context(), v)
						found = true
						break
					}
				}
				if !found {
					return fmt.Errorf("version %s not found for %s", versionFlag, args[0])
				}
			}
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
	cmd.Flags().String("version", "", "version ID to read (default: current)")
	return cmd
}
