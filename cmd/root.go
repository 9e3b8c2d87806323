package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"streamflow/server"
)

var rootCmd = &cobra.Command{
	Use:   "streamflow",
	Short: "StreamFlow is a music streaming service backend.",
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
