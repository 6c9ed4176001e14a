package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/signal-k/stardust-api/internal/models"
)

const (
	migrationRenameLegacySatelliteTag = "2026-07-14_rename_legacy_satellite_automaton"
	migrationClampNegativeQuantities  = "2026-08-02_clamp_negative_inventory_quantities"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationRenameLegacySatelliteTag, apply: renameLegacySatelliteTag},
		{name: migrationClampNegativeQuantities, apply: clampNegativeInventoryQuantities},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Early deployments wrote "Satellite" before the tag diverged into weather
// and solar variants.
func renameLegacySatelliteTag(db *gorm.DB) error {
	return db.Model(&models.LinkedAnomaly{}).
		Where("automaton = ?", "Satellite").
		Update("automaton", models.AutomatonWeatherSatellite).Error
}

func clampNegativeInventoryQuantities(db *gorm.DB) error {
	return db.Model(&models.MineralInventoryEntry{}).
		Where("quantity < 0").
		Update("quantity", 0).Error
}
