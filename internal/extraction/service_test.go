package extraction

import (
	"context"
	"math"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/signal-k/stardust-api/internal/apperr"
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
	if err := db.AutoMigrate(&models.MineralDeposit{}, &models.MineralInventoryEntry{}); err != nil {
		t.Fatalf("automigrate failed: %v", err)
	}
	service, err := NewService(ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return service, db
}

func seedDeposit(t *testing.T, db *gorm.DB, owner, configuration string) int64 {
	t.Helper()
	deposit := models.MineralDeposit{Owner: owner, Configuration: configuration, Location: "mars-sector-7"}
	if err := db.Create(&deposit).Error; err != nil {
		t.Fatalf("failed to seed deposit: %v", err)
	}
	return deposit.ID
}

func TestExtractHappyPathDepletesDeposit(t *testing.T) {
	service, db := newTestService(t)
	depositID := seedDeposit(t, db, "amara", `{"type":"water-ice","amount":42,"quantity":3,"purity":0.8,"vein":"north"}`)

	if err := service.Extract(context.Background(), "amara", depositID, 3, 0.8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entry models.MineralInventoryEntry
	if err := db.Take(&entry).Error; err != nil {
		t.Fatalf("expected one inventory entry: %v", err)
	}
	if entry.MineralType != "water-ice" || entry.Quantity != 3 || entry.Purity != 0.8 {
		t.Fatalf("unexpected inventory entry: %+v", entry)
	}

	var deposit models.MineralDeposit
	if err := db.Take(&deposit, depositID).Error; err != nil {
		t.Fatalf("failed to reload deposit: %v", err)
	}
	config, err := models.DecodeMineralConfiguration(deposit.Configuration)
	if err != nil {
		t.Fatalf("failed to decode configuration: %v", err)
	}
	if !config.Depleted() {
		t.Fatalf("expected depleted marker, got %q", deposit.Configuration)
	}
	if config.Type != "water-ice" {
		t.Fatalf("expected type preserved through depletion, got %q", config.Type)
	}
	if !strings.Contains(deposit.Configuration, `"vein"`) {
		t.Fatalf("expected extra fields preserved, got %q", deposit.Configuration)
	}
}

func TestExtractSecondCallIsRejected(t *testing.T) {
	service, db := newTestService(t)
	depositID := seedDeposit(t, db, "amara", `{"type":"methane","amount":10,"quantity":2}`)

	if err := service.Extract(context.Background(), "amara", depositID, 2, 0.5); err != nil {
		t.Fatalf("unexpected error on first extraction: %v", err)
	}
	err := service.Extract(context.Background(), "amara", depositID, 2, 0.5)
	if apperr.KindOf(err) != apperr.KindDepleted {
		t.Fatalf("expected depleted conflict, got %v", err)
	}

	var entries int64
	if err := db.Model(&models.MineralInventoryEntry{}).Count(&entries).Error; err != nil {
		t.Fatalf("failed to count entries: %v", err)
	}
	if entries != 1 {
		t.Fatalf("expected exactly one inventory entry, got %d", entries)
	}
}

func TestExtractValidationOrder(t *testing.T) {
	service, db := newTestService(t)
	depositID := seedDeposit(t, db, "amara", `{"type":"soil","amount":5,"quantity":1}`)
	untypedID := seedDeposit(t, db, "amara", `{"amount":5,"quantity":1}`)

	testCases := []struct {
		name      string
		playerID  string
		depositID int64
		quantity  float64
		purity    float64
		wantKind  apperr.Kind
	}{
		{name: "missing deposit", playerID: "amara", depositID: 9999, quantity: 1, purity: 0, wantKind: apperr.KindNotFound},
		{name: "zero quantity", playerID: "amara", depositID: depositID, quantity: 0, purity: 0, wantKind: apperr.KindInvalidPayload},
		{name: "negative quantity", playerID: "amara", depositID: depositID, quantity: -4, purity: 0, wantKind: apperr.KindInvalidPayload},
		{name: "nan quantity", playerID: "amara", depositID: depositID, quantity: math.NaN(), purity: 0, wantKind: apperr.KindInvalidPayload},
		{name: "infinite purity", playerID: "amara", depositID: depositID, quantity: 1, purity: math.Inf(1), wantKind: apperr.KindInvalidPayload},
		{name: "foreign deposit", playerID: "bodhi", depositID: depositID, quantity: 1, purity: 0, wantKind: apperr.KindForbidden},
		{name: "untyped deposit", playerID: "amara", depositID: untypedID, quantity: 1, purity: 0, wantKind: apperr.KindInvalidPayload},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := service.Extract(context.Background(), testCase.playerID, testCase.depositID, testCase.quantity, testCase.purity)
			if apperr.KindOf(err) != testCase.wantKind {
				t.Fatalf("expected kind %q, got %v", testCase.wantKind, err)
			}
		})
	}

	var entries int64
	if err := db.Model(&models.MineralInventoryEntry{}).Count(&entries).Error; err != nil {
		t.Fatalf("failed to count entries: %v", err)
	}
	if entries != 0 {
		t.Fatalf("expected rejected extractions to write nothing, got %d entries", entries)
	}
}

func TestGetDepositOwnership(t *testing.T) {
	service, db := newTestService(t)
	depositID := seedDeposit(t, db, "amara", `{"type":"dust","amount":1,"quantity":1}`)

	deposit, err := service.GetDeposit(context.Background(), "amara", depositID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deposit.ID != depositID {
		t.Fatalf("expected deposit %d, got %d", depositID, deposit.ID)
	}

	if _, err := service.GetDeposit(context.Background(), "bodhi", depositID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden for foreign reader, got %v", err)
	}
	if _, err := service.GetDeposit(context.Background(), "amara", 9999); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := service.GetDeposit(context.Background(), "", depositID); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("expected unauthorized for empty player, got %v", err)
	}
}

func TestListDepositsScopedToOwner(t *testing.T) {
	service, db := newTestService(t)
	seedDeposit(t, db, "amara", `{"type":"methane","amount":1,"quantity":1}`)
	seedDeposit(t, db, "amara", `{"type":"water-ice","amount":1,"quantity":1}`)
	seedDeposit(t, db, "bodhi", `{"type":"methane","amount":1,"quantity":1}`)

	deposits, err := service.ListDeposits(context.Background(), "amara")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deposits) != 2 {
		t.Fatalf("expected 2 deposits, got %d", len(deposits))
	}
	for _, deposit := range deposits {
		if deposit.Owner != "amara" {
			t.Fatalf("expected only owned deposits, got owner %q", deposit.Owner)
		}
	}
}

func TestListInventoryReturnsExtractionLedger(t *testing.T) {
	service, db := newTestService(t)
	first := seedDeposit(t, db, "amara", `{"type":"methane","amount":1,"quantity":1}`)
	second := seedDeposit(t, db, "amara", `{"type":"water-ice","amount":1,"quantity":2}`)

	if err := service.Extract(context.Background(), "amara", first, 1, 0.4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := service.Extract(context.Background(), "amara", second, 2, 0.9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := service.ListInventory(context.Background(), "amara")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	other, err := service.ListInventory(context.Background(), "bodhi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected empty inventory for other player, got %d", len(other))
	}
}
