package main

import (
	"go-billing-core/internal/database"
	"go-billing-core/internal/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		log := logger.WithComponent("migrate")
		log.Info().Msg("Schema is up to date")
		return nil
	},
}
