// Package deployment tracks per-instrument deployment state: which
// instruments are active and how many of their targets remain unclassified.
package deployment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/signal-k/stardust-api/internal/apperr"
	"github.com/signal-k/stardust-api/internal/catalogue"
	"github.com/signal-k/stardust-api/internal/models"
)

// Telescope deployments expire weekly; satellite and rover links do not.
const telescopeWindow = 7 * 24 * time.Hour

var errMissingDatabase = errors.New("database handle is required")

// ServiceConfig describes the dependencies of the deployment tracker.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service computes deployment status and manages linked-anomaly rows.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the deployment tracker.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("deployment: %w", errMissingDatabase)
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

// InstrumentStatus reports one instrument's deployment state.
type InstrumentStatus struct {
	Deployed          bool `json:"deployed"`
	UnclassifiedCount int  `json:"unclassifiedCount"`
}

// SatelliteStatus adds the send-satellite availability flag.
type SatelliteStatus struct {
	InstrumentStatus
	Available bool `json:"available"`
}

// PlanetTarget is a planet classification a satellite can be sent to.
type PlanetTarget struct {
	ClassificationID int64  `json:"classificationId"`
	Name             string `json:"name"`
}

// Status is the full per-instrument deployment picture.
type Status struct {
	Telescope     InstrumentStatus `json:"telescope"`
	Satellites    SatelliteStatus  `json:"satellites"`
	Rover         InstrumentStatus `json:"rover"`
	PlanetTargets []PlanetTarget   `json:"planetTargets"`
}

// ComputeStatus reports deployment state for every instrument. An empty
// player identity returns a zeroed status rather than an error, so the
// header UI keeps rendering for anonymous or expired sessions.
func (s *Service) ComputeStatus(ctx context.Context, playerID string) (Status, error) {
	if playerID == "" {
		return Status{PlanetTargets: []PlanetTarget{}}, nil
	}

	now := s.clock().UTC()

	var telescopeLinks []models.LinkedAnomaly
	if err := s.db.WithContext(ctx).
		Where("author = ? AND automaton = ? AND date >= ?",
			playerID, models.AutomatonTelescope, now.Add(-telescopeWindow)).
		Find(&telescopeLinks).Error; err != nil {
		return Status{}, apperr.Internal("failed to load telescope links", err)
	}

	var satelliteLinks []models.LinkedAnomaly
	if err := s.db.WithContext(ctx).
		Where("author = ? AND automaton = ?", playerID, models.AutomatonWeatherSatellite).
		Find(&satelliteLinks).Error; err != nil {
		return Status{}, apperr.Internal("failed to load satellite links", err)
	}

	var roverLinks []models.LinkedAnomaly
	if err := s.db.WithContext(ctx).
		Where("author = ? AND automaton = ?", playerID, models.AutomatonRover).
		Find(&roverLinks).Error; err != nil {
		return Status{}, apperr.Internal("failed to load rover links", err)
	}

	var classifications []models.Classification
	if err := s.db.WithContext(ctx).
		Where("author = ?", playerID).
		Find(&classifications).Error; err != nil {
		return Status{}, apperr.Internal("failed to load classifications", err)
	}

	// Classified anomalies are derived from the classification rows alone,
	// never from the link's own classification reference, so a
	// classification created through any path resolves the link.
	classified := make(map[int64]struct{}, len(classifications))
	for _, row := range classifications {
		if row.Anomaly != nil {
			classified[*row.Anomaly] = struct{}{}
		}
	}

	planetTargets, err := s.planetTargets(ctx, classifications)
	if err != nil {
		return Status{}, err
	}

	status := Status{
		Telescope: instrumentStatus(telescopeLinks, classified),
		Satellites: SatelliteStatus{
			InstrumentStatus: instrumentStatus(satelliteLinks, classified),
			Available:        len(planetTargets) > 0,
		},
		Rover:         instrumentStatus(roverLinks, classified),
		PlanetTargets: planetTargets,
	}
	return status, nil
}

func instrumentStatus(links []models.LinkedAnomaly, classified map[int64]struct{}) InstrumentStatus {
	status := InstrumentStatus{Deployed: len(links) > 0}
	for _, link := range links {
		if _, ok := classified[link.AnomalyID]; !ok {
			status.UnclassifiedCount++
		}
	}
	return status
}

func (s *Service) planetTargets(ctx context.Context, classifications []models.Classification) ([]PlanetTarget, error) {
	targets := []PlanetTarget{}
	anomalyIDs := make([]int64, 0)
	planetRows := make([]models.Classification, 0)
	for _, row := range classifications {
		if row.ClassificationType != catalogue.ClassificationPlanet {
			continue
		}
		planetRows = append(planetRows, row)
		if row.Anomaly != nil {
			anomalyIDs = append(anomalyIDs, *row.Anomaly)
		}
	}
	if len(planetRows) == 0 {
		return targets, nil
	}

	names := make(map[int64]string)
	if len(anomalyIDs) > 0 {
		var anomalies []models.Anomaly
		if err := s.db.WithContext(ctx).
			Where("id IN ?", anomalyIDs).
			Find(&anomalies).Error; err != nil {
			return nil, apperr.Internal("failed to load planet anomalies", err)
		}
		for _, anomaly := range anomalies {
			names[anomaly.ID] = anomaly.Content
		}
	}

	for _, row := range planetRows {
		name := ""
		if row.Anomaly != nil {
			name = names[*row.Anomaly]
		}
		if name == "" {
			name = fmt.Sprintf("Planet #%d", row.ID)
		}
		targets = append(targets, PlanetTarget{ClassificationID: row.ID, Name: name})
	}
	return targets, nil
}
