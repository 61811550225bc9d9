// Package cli implements the nasstore command-line interface: a direct,
// single-process driver for the storage engine (no client/server split --
// every subcommand opens the home directory's databases itself, does its
// work, and closes them again).
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// NewRootCommand returns the "nasstore" root command with all subcommands
// wired in. logger is the base logger; subcommands scope it further.
func NewRootCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nasstore",
		Short: "Incremental, deduplicating, versioned file storage engine",
	}

	cmd.PersistentFlags().String("home", "", "home directory (default: platform config dir)")
	cmd.PersistentFlags().StringP("output", "o", "table", "output format: table or json")

	cmd.AddCommand(
		newSaveCmd(logger),
		newReadCmd(logger),
		newListCmd(logger),
		newHistoryCmd(logger),
		newRemoveCmd(logger),
		newGCCmd(logger),
		newTierCmd(logger),
		newVerifyCmd(logger),
		newStatsCmd(logger),
	)

	return cmd
}

func outputFormat(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("output")
	return f
}
