// Package milestones computes progress fractions across research upgrades,
// classification diversity, and mineral extraction diversity. Everything here
// is a read-model projection over source rows, recomputed per call.
package milestones

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/signal-k/stardust-api/internal/apperr"
	"github.com/signal-k/stardust-api/internal/catalogue"
	"github.com/signal-k/stardust-api/internal/models"
)

var errMissingDatabase = errors.New("database handle is required")

// ServiceConfig describes the dependencies of the milestone aggregator.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service aggregates milestone progress for the progress UI.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService constructs the milestone aggregator.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("milestones: %w", errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, logger: logger}, nil
}

// Fraction is a completed-over-total progress pair.
type Fraction struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Progress is the three-axis milestone summary.
type Progress struct {
	AllUpgrades             Fraction `json:"allUpgrades"`
	ClassificationDiversity Fraction `json:"classificationDiversity"`
	ResourceExtraction      Fraction `json:"resourceExtraction"`
}

// ComputeMilestones recomputes all three progress axes from source rows.
func (s *Service) ComputeMilestones(ctx context.Context, playerID string) (Progress, error) {
	if playerID == "" {
		return Progress{}, apperr.New(apperr.KindUnauthorized, "player identity is required")
	}

	upgrades, err := s.upgradeProgress(ctx, playerID)
	if err != nil {
		return Progress{}, err
	}
	diversity, err := s.classificationDiversity(ctx, playerID)
	if err != nil {
		return Progress{}, err
	}
	extraction, err := s.resourceExtraction(ctx, playerID)
	if err != nil {
		return Progress{}, err
	}

	return Progress{
		AllUpgrades:             upgrades,
		ClassificationDiversity: diversity,
		ResourceExtraction:      extraction,
	}, nil
}

func (s *Service) upgradeProgress(ctx context.Context, playerID string) (Fraction, error) {
	var owned []string
	if err := s.db.WithContext(ctx).
		Model(&models.Researched{}).
		Distinct("tech_type").
		Where("user_id = ?", playerID).
		Pluck("tech_type", &owned).Error; err != nil {
		return Fraction{}, apperr.Internal("failed to load researched techs", err)
	}

	// Rows for techs that fell out of the catalogue do not count.
	completed := 0
	for _, techType := range owned {
		if _, ok := catalogue.TechByType(techType); ok {
			completed++
		}
	}
	return Fraction{Completed: completed, Total: catalogue.TechCount()}, nil
}

func (s *Service) classificationDiversity(ctx context.Context, playerID string) (Fraction, error) {
	var present []string
	if err := s.db.WithContext(ctx).
		Model(&models.Classification{}).
		Distinct("classificationtype").
		Where("author = ?", playerID).
		Pluck("classificationtype", &present).Error; err != nil {
		return Fraction{}, apperr.Internal("failed to load classification types", err)
	}

	presentSet := make(map[string]struct{}, len(present))
	for _, classificationType := range present {
		presentSet[classificationType] = struct{}{}
	}

	allowList := catalogue.DiversityTypes()
	completed := 0
	for _, classificationType := range allowList {
		if _, ok := presentSet[classificationType]; ok {
			completed++
		}
	}
	return Fraction{Completed: completed, Total: len(allowList)}, nil
}

func (s *Service) resourceExtraction(ctx context.Context, playerID string) (Fraction, error) {
	var deposits []models.MineralDeposit
	if err := s.db.WithContext(ctx).
		Where("owner = ?", playerID).
		Find(&deposits).Error; err != nil {
		return Fraction{}, apperr.Internal("failed to load deposits", err)
	}

	matched := make(map[string]struct{})
	for _, deposit := range deposits {
		config, err := models.DecodeMineralConfiguration(deposit.Configuration)
		if err != nil {
			s.logger.Warn("skipping deposit with malformed configuration",
				zap.Int64("deposit_id", deposit.ID),
				zap.Error(err))
			continue
		}
		// Unmatched types are dropped, not errors: deposits created before a
		// catalogue change should not break the progress page.
		canonical, ok := catalogue.MatchCanonicalMineral(config.Type)
		if !ok {
			continue
		}
		matched[canonical] = struct{}{}
	}
	return Fraction{Completed: len(matched), Total: catalogue.MineralCount()}, nil
}
