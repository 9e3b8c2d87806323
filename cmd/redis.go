package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"streamflow/config"
	"streamflow/db"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check Redis connectivity",
	Long:  `Connect to Redis with the configured settings and run a basic set/get/del cycle.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		fmt.Printf("Redis config: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		client, err := db.ConnectRedis(cfg)
		if err != nil {
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		defer client.Close()
		fmt.Println("Redis connection established.")

		if err := db.PingRedis(client); err != nil {
			log.Fatalf("Redis check failed: %v", err)
		}
		fmt.Println("Redis set/get/del cycle succeeded.")
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
