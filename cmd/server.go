package cmd

import (
	"github.com/spf13/cobra"

	"streamflow/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the StreamFlow HTTP server",
	Long:  `Start the StreamFlow HTTP server, serving the catalog, player, library and billing APIs.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
