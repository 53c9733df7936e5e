package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "engram",
	Short: "Personal memory pipeline",
	Long:  "Engram turns captured content into de-duplicated, linked, reviewable memory. Single Go binary, local SQLite storage.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(dedupCmd)
	rootCmd.AddCommand(queueCmd)
}
