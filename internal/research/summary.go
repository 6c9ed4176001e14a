package research

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/signal-k/stardust-api/internal/apperr"
	"github.com/signal-k/stardust-api/internal/catalogue"
	"github.com/signal-k/stardust-api/internal/ledger"
	"github.com/signal-k/stardust-api/internal/models"
)

// ResearchedEntry is one purchase with its price, for the spending breakdown.
type ResearchedEntry struct {
	TechType  string    `json:"tech_type"`
	Cost      int64     `json:"cost"`
	CreatedAt time.Time `json:"created_at"`
}

// UpgradeLevel reports an instrument-capacity upgrade's current level.
type UpgradeLevel struct {
	Current   int  `json:"current"`
	Max       int  `json:"max"`
	Available bool `json:"available"`
}

// SkillNode is one catalogue tech with the player's unlock state.
type SkillNode struct {
	TechType        string `json:"techType"`
	Name            string `json:"name"`
	Cost            int64  `json:"cost"`
	Owned           bool   `json:"owned"`
	PrerequisiteMet bool   `json:"prerequisiteMet"`
	Unlockable      bool   `json:"unlockable"`
}

// Summary is the research overview backing the research page.
type Summary struct {
	Balance            ledger.Balance    `json:"counts"`
	ResearchedEntries  []ResearchedEntry `json:"researchedEntries"`
	TelescopeReceptors UpgradeLevel      `json:"telescopeReceptors"`
	SatelliteCount     UpgradeLevel      `json:"satelliteCount"`
	RoverWaypoints     UpgradeLevel      `json:"roverWaypoints"`
	SkillTree          []SkillNode       `json:"skillTree"`
	ReferralCode       string            `json:"referralCode"`
	HasReferral        bool              `json:"hasReferral"`
}

// Summary assembles the player's balance, spending history, upgrade levels
// and skill tree state. Read-only.
func (s *Service) Summary(ctx context.Context, playerID string) (Summary, error) {
	balance, err := s.ledger.ComputeBalance(ctx, playerID)
	if err != nil {
		return Summary{}, err
	}

	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("id = ?", playerID).Take(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Summary{}, apperr.New(apperr.KindUnauthorized, "unknown player")
		}
		return Summary{}, apperr.Internal("failed to load profile", err)
	}

	var researched []models.Researched
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", playerID).
		Order("created_at ASC").
		Find(&researched).Error; err != nil {
		s.logger.Error("research summary read failed", zap.String("player_id", playerID), zap.Error(err))
		return Summary{}, apperr.Internal("failed to load researched rows", err)
	}

	owned := make(map[string]int, len(researched))
	entries := make([]ResearchedEntry, 0, len(researched))
	for _, row := range researched {
		owned[row.TechType]++
		entries = append(entries, ResearchedEntry{
			TechType:  row.TechType,
			Cost:      catalogue.Cost(row.TechType),
			CreatedAt: row.CreatedAt,
		})
	}

	classificationCounts, err := s.classificationCounts(ctx, playerID)
	if err != nil {
		return Summary{}, err
	}

	hasReferral, err := s.hasSubmittedReferral(ctx, playerID)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Balance:           balance,
		ResearchedEntries: entries,
		TelescopeReceptors: UpgradeLevel{
			Current:   1 + owned[catalogue.TechProbeReceptors],
			Max:       2,
			Available: balance.Available >= catalogue.Cost(catalogue.TechProbeReceptors) && owned[catalogue.TechProbeReceptors] < 1,
		},
		SatelliteCount: UpgradeLevel{
			Current:   1 + owned[catalogue.TechSatelliteCount],
			Max:       2,
			Available: balance.Available >= catalogue.Cost(catalogue.TechSatelliteCount) && owned[catalogue.TechSatelliteCount] < 1,
		},
		RoverWaypoints: UpgradeLevel{
			Current:   4 + owned[catalogue.TechRoverWaypoints]*2,
			Max:       6,
			Available: balance.Available >= catalogue.Cost(catalogue.TechRoverWaypoints) && owned[catalogue.TechRoverWaypoints] < 1,
		},
		HasReferral: hasReferral,
	}
	if profile.ReferralCode != nil {
		summary.ReferralCode = *profile.ReferralCode
	}

	for _, tech := range catalogue.Techs() {
		node := SkillNode{
			TechType:        tech.Type,
			Name:            tech.Name,
			Cost:            catalogue.Cost(tech.Type),
			Owned:           owned[tech.Type] > 0,
			PrerequisiteMet: prerequisiteMet(tech, owned, classificationCounts),
		}
		node.Unlockable = !node.Owned && node.PrerequisiteMet && balance.Available >= node.Cost
		summary.SkillTree = append(summary.SkillTree, node)
	}

	return summary, nil
}

// HasSubmittedReferral reports whether the player has already used someone
// else's referral code. Backs the referral-status endpoint.
func (s *Service) HasSubmittedReferral(ctx context.Context, playerID string) (bool, error) {
	return s.hasSubmittedReferral(ctx, playerID)
}

func (s *Service) hasSubmittedReferral(ctx context.Context, playerID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Referral{}).
		Where("referree = ?", playerID).
		Count(&count).Error; err != nil {
		return false, apperr.Internal("failed to check referral status", err)
	}
	return count > 0, nil
}

func (s *Service) classificationCounts(ctx context.Context, playerID string) (map[string]int64, error) {
	type typeCount struct {
		ClassificationType string
		Count              int64
	}
	var rows []typeCount
	if err := s.db.WithContext(ctx).
		Model(&models.Classification{}).
		Select("classificationtype AS classification_type, COUNT(*) AS count").
		Where("author = ?", playerID).
		Group("classificationtype").
		Find(&rows).Error; err != nil {
		return nil, apperr.Internal("failed to count classifications by type", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.ClassificationType] = row.Count
	}
	return counts, nil
}

func prerequisiteMet(tech catalogue.Tech, owned map[string]int, classificationCounts map[string]int64) bool {
	rule := tech.Prerequisite
	if rule == nil {
		return true
	}
	if rule.RequiresTech != "" {
		return owned[rule.RequiresTech] > 0
	}
	if rule.RequiresClassificationType != "" {
		return classificationCounts[rule.RequiresClassificationType] >= int64(rule.RequiredClassifications)
	}
	return true
}
