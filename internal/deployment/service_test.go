package deployment

import (
	"context"
	"strconv"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/signal-k/stardust-api/internal/apperr"
	"github.com/signal-k/stardust-api/internal/catalogue"
	"github.com/signal-k/stardust-api/internal/models"
)

func newTestService(t *testing.T, clock func() time.Time) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.Profile{},
		&models.Classification{},
		&models.Anomaly{},
		&models.LinkedAnomaly{},
	); err != nil {
		t.Fatalf("automigrate failed: %v", err)
	}
	service, err := NewService(ServiceConfig{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return service, db
}

func seedLink(t *testing.T, db *gorm.DB, author, automaton string, anomalyID int64, date time.Time) {
	t.Helper()
	link := models.LinkedAnomaly{Author: author, AnomalyID: anomalyID, Automaton: automaton, Date: date}
	if err := db.Create(&link).Error; err != nil {
		t.Fatalf("failed to seed link: %v", err)
	}
}

func seedClassification(t *testing.T, db *gorm.DB, author, classificationType string, anomalyID *int64) int64 {
	t.Helper()
	row := models.Classification{Author: author, ClassificationType: classificationType, Anomaly: anomalyID}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("failed to seed classification: %v", err)
	}
	return row.ID
}

func TestComputeStatusAnonymousPlayerIsZeroed(t *testing.T) {
	service, _ := newTestService(t, time.Now)

	status, err := service.ComputeStatus(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Telescope.Deployed || status.Satellites.Deployed || status.Rover.Deployed {
		t.Fatalf("expected zeroed status, got %+v", status)
	}
	if len(status.PlanetTargets) != 0 {
		t.Fatalf("expected no planet targets, got %d", len(status.PlanetTargets))
	}
}

func TestComputeStatusUnclassifiedIsSetDifference(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	service, db := newTestService(t, func() time.Time { return now })

	for _, anomalyID := range []int64{1, 2, 3} {
		seedLink(t, db, "amara", models.AutomatonRover, anomalyID, now)
	}
	anomaly := int64(2)
	seedClassification(t, db, "amara", catalogue.ClassificationAI4Mars, &anomaly)
	// A second classification of the same anomaly must not double-count.
	seedClassification(t, db, "amara", catalogue.ClassificationAI4Mars, &anomaly)

	status, err := service.ComputeStatus(context.Background(), "amara")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Rover.Deployed {
		t.Fatalf("expected rover to be deployed")
	}
	if status.Rover.UnclassifiedCount != 2 {
		t.Fatalf("expected 2 unclassified rover targets, got %d", status.Rover.UnclassifiedCount)
	}
}

func TestComputeStatusTelescopeWeeklyWindow(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	service, db := newTestService(t, func() time.Time { return now })

	seedLink(t, db, "amara", models.AutomatonTelescope, 10, now.Add(-6*24*time.Hour))
	seedLink(t, db, "amara", models.AutomatonTelescope, 11, now.Add(-8*24*time.Hour))

	status, err := service.ComputeStatus(context.Background(), "amara")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Telescope.Deployed {
		t.Fatalf("expected telescope deployed from the in-window link")
	}
	if status.Telescope.UnclassifiedCount != 1 {
		t.Fatalf("expected the aged-out link to be excluded, got %d unclassified", status.Telescope.UnclassifiedCount)
	}
}

func TestComputeStatusPlanetTargetsAndSatelliteAvailability(t *testing.T) {
	service, db := newTestService(t, time.Now)

	named := models.Anomaly{AnomalyType: "planet", Content: "Kepler-442b"}
	if err := db.Create(&named).Error; err != nil {
		t.Fatalf("failed to seed anomaly: %v", err)
	}
	withName := seedClassification(t, db, "amara", catalogue.ClassificationPlanet, &named.ID)
	withoutAnomaly := seedClassification(t, db, "amara", catalogue.ClassificationPlanet, nil)
	seedClassification(t, db, "amara", catalogue.ClassificationSunspot, nil)

	status, err := service.ComputeStatus(context.Background(), "amara")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Satellites.Available {
		t.Fatalf("expected satellites available with planet targets present")
	}
	if len(status.PlanetTargets) != 2 {
		t.Fatalf("expected 2 planet targets, got %d", len(status.PlanetTargets))
	}
	byID := make(map[int64]string, len(status.PlanetTargets))
	for _, target := range status.PlanetTargets {
		byID[target.ClassificationID] = target.Name
	}
	if byID[withName] != "Kepler-442b" {
		t.Fatalf("expected anomaly content as target name, got %q", byID[withName])
	}
	if want := "Planet #" + strconv.FormatInt(withoutAnomaly, 10); byID[withoutAnomaly] != want {
		t.Fatalf("expected fallback name %q, got %q", want, byID[withoutAnomaly])
	}
}

func TestComputeStatusSatelliteUnavailableWithoutPlanets(t *testing.T) {
	service, db := newTestService(t, time.Now)
	seedClassification(t, db, "amara", catalogue.ClassificationSunspot, nil)

	status, err := service.ComputeStatus(context.Background(), "amara")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Satellites.Available {
		t.Fatalf("expected satellites unavailable without planet classifications")
	}
}

func TestDeployCreatesStampedLinks(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	service, db := newTestService(t, func() time.Time { return now })

	links, err := service.Deploy(context.Background(), "amara", models.AutomatonTelescope, []int64{4, 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}

	var stored []models.LinkedAnomaly
	if err := db.Find(&stored).Error; err != nil {
		t.Fatalf("failed to read links: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored links, got %d", len(stored))
	}
	for _, link := range stored {
		if !link.Date.Equal(now) {
			t.Fatalf("expected link stamped %v, got %v", now, link.Date)
		}
		if link.Unlocked {
			t.Fatalf("expected fresh links to start locked")
		}
	}
}

func TestDeployValidation(t *testing.T) {
	service, _ := newTestService(t, time.Now)

	if _, err := service.Deploy(context.Background(), "", models.AutomatonRover, []int64{1}); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("expected unauthorized for empty player, got %v", err)
	}
	if _, err := service.Deploy(context.Background(), "amara", "Submarine", []int64{1}); apperr.KindOf(err) != apperr.KindInvalidPayload {
		t.Fatalf("expected invalid payload for unknown automaton, got %v", err)
	}
	if _, err := service.Deploy(context.Background(), "amara", models.AutomatonRover, nil); apperr.KindOf(err) != apperr.KindInvalidPayload {
		t.Fatalf("expected invalid payload for empty target list, got %v", err)
	}
}

func TestDeleteLinksRequiresFilter(t *testing.T) {
	service, _ := newTestService(t, time.Now)

	if _, err := service.DeleteLinks(context.Background(), "amara", LinkFilter{}); apperr.KindOf(err) != apperr.KindInvalidPayload {
		t.Fatalf("expected invalid payload for unscoped delete, got %v", err)
	}
}

func TestDeleteLinksScopedToPlayerAndFilter(t *testing.T) {
	now := time.Now().UTC()
	service, db := newTestService(t, func() time.Time { return now })

	seedLink(t, db, "amara", models.AutomatonRover, 1, now)
	seedLink(t, db, "amara", models.AutomatonRover, 2, now)
	seedLink(t, db, "amara", models.AutomatonTelescope, 1, now)
	seedLink(t, db, "bodhi", models.AutomatonRover, 1, now)

	removed, err := service.DeleteLinks(context.Background(), "amara", LinkFilter{Automaton: models.AutomatonRover})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 rover links removed, got %d", removed)
	}

	var remaining int64
	if err := db.Model(&models.LinkedAnomaly{}).Count(&remaining).Error; err != nil {
		t.Fatalf("failed to count links: %v", err)
	}
	if remaining != 2 {
		t.Fatalf("expected 2 links untouched, got %d", remaining)
	}
}
