package main

import (
	"fmt"
	"os"

	"go-billing-core/internal/config"
	"go-billing-core/internal/database"
	"go-billing-core/internal/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var version = "1.0.0"

var configFile string

var rootCmd = &cobra.Command{
	Use:   "billingctl",
	Short: "Maintenance commands for the billing service",
	Long: `billingctl runs one-off maintenance jobs against the billing database:
schema migration, the overdue sweep and offline totals previews.

It reads the same configuration as the server (YAML file plus environment).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("CONFIG_FILE"), "path to YAML config file")
	rootCmd.AddCommand(migrateCmd, sweepCmd, previewCmd)
}

// loadConfig reads configuration and sets up logging for a command
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return nil, fmt.Errorf("set up logging: %w", err)
	}
	return cfg, nil
}

func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, db, nil
}
