// Package ledger computes a player's stardust balance from its source rows.
// The balance is a derived value: it is never persisted and can never drift
// from the classification, referral, survey and research ledgers.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/signal-k/stardust-api/internal/apperr"
	"github.com/signal-k/stardust-api/internal/catalogue"
	"github.com/signal-k/stardust-api/internal/models"
)

const referralBonusPerSignup = 5

var errMissingDatabase = errors.New("database handle is required")

// ServiceConfig describes the dependencies of the ledger service.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service exposes the read-only balance computation.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService constructs the ledger service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("ledger: %w", errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, logger: logger}, nil
}

// Balance is the computed stardust position and its input breakdown.
type Balance struct {
	Available     int64 `json:"availableStardust"`
	BaseIncome    int64 `json:"classificationCount"`
	ReferralBonus int64 `json:"referralBonus"`
	ReferralCount int64 `json:"referralCount"`
	SurveyBonus   int64 `json:"surveyBonus"`
	ResearchSpend int64 `json:"researchSpend"`
}

// ComputeBalance derives the player's current balance. One classification is
// one stardust unit of income; every researched row is spend at its tech's
// price; referral and survey bonuses add on top. The result is clamped at
// zero and recomputed from source rows on every call.
func (s *Service) ComputeBalance(ctx context.Context, playerID string) (Balance, error) {
	if playerID == "" {
		return Balance{}, apperr.New(apperr.KindUnauthorized, "player identity required")
	}

	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("id = ?", playerID).Take(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Balance{}, apperr.New(apperr.KindUnauthorized, "unknown player")
		}
		s.logger.Error("ledger profile read failed", zap.String("player_id", playerID), zap.Error(err))
		return Balance{}, apperr.Internal("failed to load profile", err)
	}

	var (
		classificationCount int64
		researched          []models.Researched
		surveyBonus         int64
		referralCount       int64
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.db.WithContext(groupCtx).
			Model(&models.Classification{}).
			Where("author = ?", playerID).
			Count(&classificationCount).Error
	})
	group.Go(func() error {
		return s.db.WithContext(groupCtx).
			Where("user_id = ?", playerID).
			Find(&researched).Error
	})
	group.Go(func() error {
		row := s.db.WithContext(groupCtx).
			Model(&models.SurveyReward{}).
			Where("user_id = ?", playerID).
			Select("COALESCE(SUM(points), 0)").
			Row()
		return row.Scan(&surveyBonus)
	})
	if profile.ReferralCode != nil && *profile.ReferralCode != "" {
		code := *profile.ReferralCode
		group.Go(func() error {
			return s.db.WithContext(groupCtx).
				Model(&models.Referral{}).
				Where("referral_code = ?", code).
				Count(&referralCount).Error
		})
	}
	if err := group.Wait(); err != nil {
		s.logger.Error("ledger source read failed", zap.String("player_id", playerID), zap.Error(err))
		return Balance{}, apperr.Internal("failed to read balance sources", err)
	}

	var spend int64
	for _, row := range researched {
		spend += catalogue.Cost(row.TechType)
	}

	balance := Balance{
		BaseIncome:    classificationCount,
		ReferralBonus: referralCount * referralBonusPerSignup,
		ReferralCount: referralCount,
		SurveyBonus:   surveyBonus,
		ResearchSpend: spend,
	}
	balance.Available = classificationCount + balance.ReferralBonus + surveyBonus - spend
	if balance.Available < 0 {
		balance.Available = 0
	}
	return balance, nil
}
