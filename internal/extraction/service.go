// Package extraction converts mineral deposits into durable inventory
// records. A deposit is extractable exactly once; the depletion marker
// (amount and quantity both zero) is written in the same transaction as the
// inventory insert so concurrent extractions cannot both succeed.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/signal-k/stardust-api/internal/apperr"
	"github.com/signal-k/stardust-api/internal/models"
)

var errMissingDatabase = errors.New("database handle is required")

// ServiceConfig describes the dependencies of the extraction service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service owns deposit reads and the one-shot extraction flow.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the extraction service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("extraction: %w", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Extract moves a deposit's minerals into the player's inventory and marks
// the deposit depleted. Repeat calls against the same deposit fail with the
// depleted conflict.
func (s *Service) Extract(ctx context.Context, playerID string, depositID int64, quantity, purity float64) error {
	if playerID == "" {
		return apperr.New(apperr.KindUnauthorized, "player identity is required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var deposit models.MineralDeposit
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", depositID).
			Take(&deposit).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Newf(apperr.KindNotFound, "deposit %d does not exist", depositID)
			}
			return apperr.Internal("failed to load deposit", err)
		}

		if !(quantity > 0) || math.IsInf(quantity, 0) || math.IsNaN(quantity) {
			return apperr.New(apperr.KindInvalidPayload, "extractedQuantity must be a positive finite number")
		}
		if math.IsInf(purity, 0) || math.IsNaN(purity) {
			return apperr.New(apperr.KindInvalidPayload, "purity must be a finite number")
		}

		if deposit.Owner != playerID {
			return apperr.New(apperr.KindForbidden, "deposit belongs to another player")
		}

		config, err := models.DecodeMineralConfiguration(deposit.Configuration)
		if err != nil {
			return apperr.Internal("failed to decode deposit configuration", err)
		}
		if config.Type == "" {
			return apperr.New(apperr.KindInvalidPayload, "deposit has no mineral type assigned")
		}
		if config.Depleted() {
			return apperr.Newf(apperr.KindDepleted, "deposit %d is already depleted", depositID)
		}

		entry := models.MineralInventoryEntry{
			UserID:      playerID,
			DepositID:   deposit.ID,
			MineralType: config.Type,
			Quantity:    quantity,
			Purity:      purity,
			CreatedAt:   s.clock().UTC(),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return apperr.Internal("failed to record inventory entry", err)
		}

		depletedBlob, err := config.EncodeDepleted()
		if err != nil {
			return apperr.Internal("failed to encode depleted configuration", err)
		}
		// Guarded on the pre-read blob so a racing extraction that already
		// landed its depletion write leaves this update with zero rows.
		result := tx.Model(&models.MineralDeposit{}).
			Where("id = ? AND mineral_configuration = ?", deposit.ID, deposit.Configuration).
			Update("mineral_configuration", depletedBlob)
		if result.Error != nil {
			return apperr.Internal("failed to mark deposit depleted", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.Newf(apperr.KindDepleted, "deposit %d is already depleted", depositID)
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			s.logger.Error("extraction failed",
				zap.String("player_id", playerID),
				zap.Int64("deposit_id", depositID),
				zap.Error(err))
		}
		return err
	}

	s.logger.Info("deposit extracted",
		zap.String("player_id", playerID),
		zap.Int64("deposit_id", depositID),
		zap.Float64("quantity", quantity))
	return nil
}

// GetDeposit returns one deposit after an ownership check.
func (s *Service) GetDeposit(ctx context.Context, playerID string, depositID int64) (models.MineralDeposit, error) {
	if playerID == "" {
		return models.MineralDeposit{}, apperr.New(apperr.KindUnauthorized, "player identity is required")
	}

	var deposit models.MineralDeposit
	if err := s.db.WithContext(ctx).Where("id = ?", depositID).Take(&deposit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.MineralDeposit{}, apperr.Newf(apperr.KindNotFound, "deposit %d does not exist", depositID)
		}
		return models.MineralDeposit{}, apperr.Internal("failed to load deposit", err)
	}
	if deposit.Owner != playerID {
		return models.MineralDeposit{}, apperr.New(apperr.KindForbidden, "deposit belongs to another player")
	}
	return deposit, nil
}

// ListDeposits returns the player's deposits, newest first.
func (s *Service) ListDeposits(ctx context.Context, playerID string) ([]models.MineralDeposit, error) {
	if playerID == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "player identity is required")
	}

	deposits := []models.MineralDeposit{}
	if err := s.db.WithContext(ctx).
		Where("owner = ?", playerID).
		Order("created_at DESC, id DESC").
		Find(&deposits).Error; err != nil {
		return nil, apperr.Internal("failed to list deposits", err)
	}
	return deposits, nil
}

// ListInventory returns the player's extraction ledger entries, newest first.
func (s *Service) ListInventory(ctx context.Context, playerID string) ([]models.MineralInventoryEntry, error) {
	if playerID == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "player identity is required")
	}

	entries := []models.MineralInventoryEntry{}
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", playerID).
		Order("created_at DESC, id DESC").
		Find(&entries).Error; err != nil {
		return nil, apperr.Internal("failed to list inventory", err)
	}
	return entries, nil
}
