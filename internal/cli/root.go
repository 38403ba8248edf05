// Package cli implements the questlog maintenance CLI: inspecting
// archives, living summaries, and compression history of a campaign
// store, and running offline compression passes.
package cli

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "questlog",
		Short:         "questlog: inspect and maintain a campaign's conversation memory",
		Long:          "questlog manages the conversation-memory store of an AI dungeon-master campaign: per-module archives, living summaries, and the compression history of the active segment.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.questlog.yaml)")

	rootCmd.AddCommand(
		newStatsCmd(),
		newArchivesCmd(),
		newSummaryCmd(),
		newCompressCmd(),
	)
	return rootCmd
}
