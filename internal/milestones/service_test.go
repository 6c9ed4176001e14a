package milestones

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/signal-k/stardust-api/internal/apperr"
	"github.com/signal-k/stardust-api/internal/catalogue"
	"github.com/signal-k/stardust-api/internal/models"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
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
		&models.Classification{},
		&models.Researched{},
		&models.MineralDeposit{},
	); err != nil {
		t.Fatalf("automigrate failed: %v", err)
	}
	service, err := NewService(ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return service, db
}

func TestComputeMilestonesRequiresPlayer(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.ComputeMilestones(context.Background(), "")
	if apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestComputeMilestonesEmptyPlayer(t *testing.T) {
	service, _ := newTestService(t)

	progress, err := service.ComputeMilestones(context.Background(), "amara")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress.AllUpgrades.Completed != 0 || progress.AllUpgrades.Total != catalogue.TechCount() {
		t.Fatalf("unexpected upgrade fraction: %+v", progress.AllUpgrades)
	}
	if progress.ClassificationDiversity.Completed != 0 || progress.ClassificationDiversity.Total != len(catalogue.DiversityTypes()) {
		t.Fatalf("unexpected diversity fraction: %+v", progress.ClassificationDiversity)
	}
	if progress.ResourceExtraction.Completed != 0 || progress.ResourceExtraction.Total != catalogue.MineralCount() {
		t.Fatalf("unexpected extraction fraction: %+v", progress.ResourceExtraction)
	}
}

func TestUpgradeProgressCountsDistinctCatalogueTechs(t *testing.T) {
	service, db := newTestService(t)

	for _, techType := range []string{
		catalogue.TechSpectroscopy,
		catalogue.TechSpectroscopy, // duplicate rows collapse
		catalogue.TechFindMinerals,
		"retiredTech", // off-catalogue rows do not count
	} {
		if err := db.Create(&models.Researched{UserID: "amara", TechType: techType}).Error; err != nil {
			t.Fatalf("failed to seed researched row: %v", err)
		}
	}

	progress, err := service.ComputeMilestones(context.Background(), "amara")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress.AllUpgrades.Completed != 2 {
		t.Fatalf("expected 2 completed upgrades, got %d", progress.AllUpgrades.Completed)
	}
}

func TestClassificationDiversityUsesAllowList(t *testing.T) {
	service, db := newTestService(t)

	for _, classificationType := range []string{
		catalogue.ClassificationPlanet,
		catalogue.ClassificationPlanet,
		catalogue.ClassificationSunspot,
		"balloon-weather", // off-list type is excluded from both sides
	} {
		row := models.Classification{Author: "amara", ClassificationType: classificationType}
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("failed to seed classification: %v", err)
		}
	}

	progress, err := service.ComputeMilestones(context.Background(), "amara")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress.ClassificationDiversity.Completed != 2 {
		t.Fatalf("expected 2 diversity types, got %d", progress.ClassificationDiversity.Completed)
	}
	if progress.ClassificationDiversity.Total != len(catalogue.DiversityTypes()) {
		t.Fatalf("expected allow-list denominator, got %d", progress.ClassificationDiversity.Total)
	}
}

func TestResourceExtractionNormalizesTypeVariants(t *testing.T) {
	service, db := newTestService(t)

	for i, rawType := range []string{"Water Ice", "water-ice", "WATER_ICE"} {
		deposit := models.MineralDeposit{
			Owner:         "amara",
			Configuration: fmt.Sprintf(`{"type":%q,"amount":5,"quantity":1}`, rawType),
			Location:      fmt.Sprintf("site-%d", i),
		}
		if err := db.Create(&deposit).Error; err != nil {
			t.Fatalf("failed to seed deposit: %v", err)
		}
	}

	progress, err := service.ComputeMilestones(context.Background(), "amara")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress.ResourceExtraction.Completed != 1 {
		t.Fatalf("expected the three variants to collapse to one canonical type, got %d", progress.ResourceExtraction.Completed)
	}
}

func TestResourceExtractionDropsUnmatchedTypes(t *testing.T) {
	service, db := newTestService(t)

	for _, configuration := range []string{
		`{"type":"methane","amount":5,"quantity":1}`,
		`{"type":"unobtainium","amount":5,"quantity":1}`,
		`thisisnotjson`,
	} {
		deposit := models.MineralDeposit{Owner: "amara", Configuration: configuration}
		if err := db.Create(&deposit).Error; err != nil {
			t.Fatalf("failed to seed deposit: %v", err)
		}
	}

	progress, err := service.ComputeMilestones(context.Background(), "amara")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress.ResourceExtraction.Completed != 1 {
		t.Fatalf("expected only the methane deposit to match, got %d", progress.ResourceExtraction.Completed)
	}
}
