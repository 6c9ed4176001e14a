package deployment

import (
	"context"

	"go.uber.org/zap"

	"github.com/signal-k/stardust-api/internal/apperr"
	"github.com/signal-k/stardust-api/internal/models"
)

var deployableAutomatons = map[string]struct{}{
	models.AutomatonTelescope:        {},
	models.AutomatonWeatherSatellite: {},
	models.AutomatonRover:            {},
	models.AutomatonTelescopeSolar:   {},
}

// Deploy links an instrument to one or more anomaly targets, stamping every
// link with the current time so telescope links age out of the weekly window.
func (s *Service) Deploy(ctx context.Context, playerID, automaton string, anomalyIDs []int64) ([]models.LinkedAnomaly, error) {
	if playerID == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "player identity is required")
	}
	if _, ok := deployableAutomatons[automaton]; !ok {
		return nil, apperr.Newf(apperr.KindInvalidPayload, "unknown automaton %q", automaton)
	}
	if len(anomalyIDs) == 0 {
		return nil, apperr.New(apperr.KindInvalidPayload, "at least one anomaly target is required")
	}

	now := s.clock().UTC()
	links := make([]models.LinkedAnomaly, 0, len(anomalyIDs))
	for _, anomalyID := range anomalyIDs {
		links = append(links, models.LinkedAnomaly{
			Author:    playerID,
			AnomalyID: anomalyID,
			Automaton: automaton,
			Date:      now,
		})
	}
	if err := s.db.WithContext(ctx).Create(&links).Error; err != nil {
		return nil, apperr.Internal("failed to create anomaly links", err)
	}

	s.logger.Info("instrument deployed",
		zap.String("player_id", playerID),
		zap.String("automaton", automaton),
		zap.Int("targets", len(links)))
	return links, nil
}

// LinkFilter narrows a DeleteLinks call. At least one field must be set; an
// unscoped delete of a player's entire link history is never allowed.
type LinkFilter struct {
	Automaton string
	AnomalyID *int64
}

// DeleteLinks removes matching links for the player and reports how many
// rows were deleted.
func (s *Service) DeleteLinks(ctx context.Context, playerID string, filter LinkFilter) (int64, error) {
	if playerID == "" {
		return 0, apperr.New(apperr.KindUnauthorized, "player identity is required")
	}
	if filter.Automaton == "" && filter.AnomalyID == nil {
		return 0, apperr.New(apperr.KindInvalidPayload, "at least one filter is required")
	}

	query := s.db.WithContext(ctx).Where("author = ?", playerID)
	if filter.Automaton != "" {
		query = query.Where("automaton = ?", filter.Automaton)
	}
	if filter.AnomalyID != nil {
		query = query.Where("anomaly_id = ?", *filter.AnomalyID)
	}

	result := query.Delete(&models.LinkedAnomaly{})
	if result.Error != nil {
		return 0, apperr.Internal("failed to delete anomaly links", result.Error)
	}

	s.logger.Info("anomaly links removed",
		zap.String("player_id", playerID),
		zap.Int64("removed", result.RowsAffected))
	return result.RowsAffected, nil
}
