package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"streamflow/config"
	"streamflow/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long:  `Connect to MySQL with the configured settings, create the library tables and run the billing model migrations. Safe to run repeatedly.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		sqlDB, err := db.Connect(cfg)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer sqlDB.Close()

		if err := db.InitSchema(sqlDB); err != nil {
			log.Fatalf("failed to create library tables: %v", err)
		}
		fmt.Println("Library tables are up to date.")

		gormDB, err := db.ConnectGorm(cfg)
		if err != nil {
			log.Fatalf("failed to connect gorm: %v", err)
		}
		defer db.CloseGorm(gormDB)

		if err := db.MigrateBillingModels(gormDB); err != nil {
			log.Fatalf("failed to migrate billing models: %v", err)
		}
		fmt.Println("Billing tables are up to date.")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
