// Package database opens the relational store and keeps its schema current.
package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/signal-k/stardust-api/internal/config"
	"github.com/signal-k/stardust-api/internal/models"
)

// Open establishes the store connection for the configured driver and
// performs schema migrations.
func Open(cfg config.AppConfig, logger *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "sqlite":
		if cfg.DatabasePath == "" {
			return nil, fmt.Errorf("database path is required")
		}
		dialector = sqlite.Open(cfg.DatabasePath)
	case "postgres":
		if cfg.DatabaseDSN == "" {
			return nil, fmt.Errorf("database dsn is required")
		}
		dialector = postgres.Open(cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseDriver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("driver", cfg.DatabaseDriver))
	}

	return db, nil
}

// Migrate brings the schema up to date and applies the named data migrations.
// Exposed separately so tests can run it against in-memory databases.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(
		&models.Profile{},
		&models.Classification{},
		&models.Anomaly{},
		&models.LinkedAnomaly{},
		&models.Researched{},
		&models.MineralDeposit{},
		&models.MineralInventoryEntry{},
		&models.SurveyReward{},
		&models.Referral{},
		&models.Vote{},
		&models.Comment{},
		&migrationRecord{},
	); err != nil {
		return err
	}

	return applyMigrations(db, logger)
}
