// Package research validates and commits upgrade purchases against the
// stardust ledger and the catalogue's prerequisite rules.
package research

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/signal-k/stardust-api/internal/apperr"
	"github.com/signal-k/stardust-api/internal/catalogue"
	"github.com/signal-k/stardust-api/internal/ledger"
	"github.com/signal-k/stardust-api/internal/models"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingLedger   = errors.New("ledger service is required")
)

// ServiceConfig describes the dependencies of the research gate.
type ServiceConfig struct {
	Database *gorm.DB
	Ledger   *ledger.Service
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service is the research gate: one purchase, atomically validated and
// committed.
type Service struct {
	db     *gorm.DB
	ledger *ledger.Service
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the research gate.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("research: %w", errMissingDatabase)
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("research: %w", errMissingLedger)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, ledger: cfg.Ledger, clock: clock, logger: logger}, nil
}

// Purchase validates and commits the purchase of one upgrade. The owned
// check, prerequisite rules, balance check and insert all run in a single
// transaction over freshly read, row-locked state; no caller-supplied
// balance is ever trusted, and concurrent purchases for the same player
// serialize on the lock.
func (s *Service) Purchase(ctx context.Context, playerID, techType string) error {
	if playerID == "" {
		return apperr.New(apperr.KindUnauthorized, "player identity required")
	}

	tech, ok := catalogue.TechByType(techType)
	if !ok {
		return apperr.Newf(apperr.KindInvalidTech, "unknown tech type %q", techType)
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.Profile
		if err := tx.Where("id = ?", playerID).Take(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindUnauthorized, "unknown player")
			}
			return apperr.Internal("failed to load profile", err)
		}

		var researched []models.Researched
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", playerID).
			Find(&researched).Error; err != nil {
			return apperr.Internal("failed to load researched rows", err)
		}

		owned := make(map[string]int, len(researched))
		var spend int64
		for _, row := range researched {
			owned[row.TechType]++
			spend += catalogue.Cost(row.TechType)
		}

		if owned[tech.Type] > 0 {
			if tech.Quantity {
				return apperr.Newf(apperr.KindMaxed, "%s is already at maximum level", tech.Name)
			}
			return apperr.Newf(apperr.KindAlreadyUnlocked, "%s is already unlocked", tech.Name)
		}

		if err := s.checkPrerequisite(tx, playerID, tech, owned); err != nil {
			return err
		}

		var classificationCount int64
		if err := tx.Model(&models.Classification{}).
			Where("author = ?", playerID).
			Count(&classificationCount).Error; err != nil {
			return apperr.Internal("failed to count classifications", err)
		}
		var surveyBonus int64
		row := tx.Model(&models.SurveyReward{}).
			Where("user_id = ?", playerID).
			Select("COALESCE(SUM(points), 0)").
			Row()
		if err := row.Scan(&surveyBonus); err != nil {
			return apperr.Internal("failed to sum survey rewards", err)
		}
		var referralCount int64
		if profile.ReferralCode != nil && *profile.ReferralCode != "" {
			if err := tx.Model(&models.Referral{}).
				Where("referral_code = ?", *profile.ReferralCode).
				Count(&referralCount).Error; err != nil {
				return apperr.Internal("failed to count referrals", err)
			}
		}

		available := classificationCount + referralCount*5 + surveyBonus - spend
		if available < 0 {
			available = 0
		}
		cost := catalogue.Cost(tech.Type)
		if available < cost {
			return apperr.Newf(apperr.KindInsufficientFunds,
				"not enough stardust for %s: have %d, need %d", tech.Name, available, cost).
				WithDetail("available", available).
				WithDetail("required", cost)
		}

		record := models.Researched{
			UserID:    playerID,
			TechType:  tech.Type,
			CreatedAt: s.clock().UTC(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return apperr.Internal("failed to record purchase", err)
		}
		return nil
	})

	if txErr != nil {
		if apperr.KindOf(txErr) == apperr.KindInternal {
			s.logger.Error("research purchase failed",
				zap.String("player_id", playerID),
				zap.String("tech_type", techType),
				zap.Error(txErr))
		}
		return txErr
	}

	s.logger.Info("research purchase committed",
		zap.String("player_id", playerID),
		zap.String("tech_type", techType))
	return nil
}

func (s *Service) checkPrerequisite(tx *gorm.DB, playerID string, tech catalogue.Tech, owned map[string]int) error {
	rule := tech.Prerequisite
	if rule == nil {
		return nil
	}

	if rule.RequiresTech != "" {
		if owned[rule.RequiresTech] == 0 {
			required, _ := catalogue.TechByType(rule.RequiresTech)
			return apperr.Newf(apperr.KindPrerequisiteNotMet,
				"%s requires %s to be unlocked first", tech.Name, required.Name)
		}
		return nil
	}

	if rule.RequiresClassificationType != "" {
		var count int64
		if err := tx.Model(&models.Classification{}).
			Where("author = ? AND classificationtype = ?", playerID, rule.RequiresClassificationType).
			Count(&count).Error; err != nil {
			return apperr.Internal("failed to count prerequisite classifications", err)
		}
		if count < int64(rule.RequiredClassifications) {
			return apperr.Newf(apperr.KindPrerequisiteNotMet,
				"%s requires %d %s classifications, have %d",
				tech.Name, rule.RequiredClassifications, rule.RequiresClassificationType, count)
		}
	}
	return nil
}
