package database

import (
	"fmt"
	"strings"
	"time"

	"go-billing-core/internal/config"
	"go-billing-core/internal/logger"
	"go-billing-core/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the configured database, retrying while it comes up, and stores
// the handle in DB.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	DB = db
	return db, nil
}

// Open returns a gorm handle for cfg. Timestamps are written in UTC at
// millisecond precision so an updated_at value read back compares equal.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	log := logger.WithComponent("database")

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel(cfg.LogLevel)),
		NowFunc: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}

	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 1
	}

	var db *gorm.DB
	for i := 0; i < retries; i++ {
		db, err = gorm.Open(dialector, gormCfg)
		if err == nil {
			break
		}
		log.Warn().Err(err).Msgf("Failed to connect to database. Retrying in 2 seconds... (%d/%d)", i+1, retries)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to database after %d attempts: %w", retries, err)
	}

	if cfg.Driver == "sqlite" {
		// one writer at a time; in-memory databases also live on a single connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	}

	log.Info().Str("driver", cfg.Driver).Msg("Connected to database")
	return db, nil
}

// Migrate syncs the billing schema.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Company{},
		&models.Client{},
		&models.User{},
		&models.Quote{},
		&models.Invoice{},
		&models.QuoteItem{},
		&models.InvoiceItem{},
		&models.ConversionRecord{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	log := logger.WithComponent("database")
	log.Info().Msg("Database schema synced")
	return nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		return mysql.Open(cfg.DSN), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func logLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	}
	return gormlogger.Warn
}
