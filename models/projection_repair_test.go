package models

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func openRepairDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), config.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := MigrateSchema(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// A receipt that lands between the check and the repair must survive the rebuild.
func TestRepairDriftSkipsRowsThatMovedOn(t *testing.T) {
	db := openRepairDB(t)
	ctx := context.Background()
	n := decimal.NewFromInt

	if err := db.Create(&WarehouseStock{ProductId: "P", WarehouseName: "W", AvailableStock: n(15)}).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	if err := db.Create(&CustomerInventory{ProductId: "P", CustomerId: "C", Quantity: n(3)}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	stockOfP := func() decimal.Decimal {
		var s WarehouseStock
		if err := db.Where("product_id = ? AND warehouse_name = ?", "P", "W").First(&s).Error; err != nil {
			t.Fatalf("read stock: %v", err)
		}
		return s.AvailableStock
	}

	// checked at 12, a credit of 3 has since raised it to 15
	stale := ProjectionDrift{Ledger: MovementLedgerWarehouse, ProductId: "P", WarehouseName: "W", Stored: n(12), FromMovements: n(10)}
	applied, err := repairDrift(ctx, db, stale, time.Now())
	if err != nil || applied {
		t.Fatalf("stale drift: applied=%v err=%v", applied, err)
	}
	if got := stockOfP(); !got.Equal(n(15)) {
		t.Fatalf("stale drift overwrote stock: got %s", got)
	}

	current := ProjectionDrift{Ledger: MovementLedgerWarehouse, ProductId: "P", WarehouseName: "W", Stored: n(15), FromMovements: n(13)}
	applied, err = repairDrift(ctx, db, current, time.Now())
	if err != nil || !applied {
		t.Fatalf("current drift: applied=%v err=%v", applied, err)
	}
	if got := stockOfP(); !got.Equal(n(13)) {
		t.Fatalf("repaired stock: got %s, want 13", got)
	}

	// an unlogged row only adopts the value that was checked
	staleLegacy := ProjectionDrift{Ledger: MovementLedgerCustomer, ProductId: "P", CustomerId: "C", Stored: n(7), Unlogged: true}
	applied, err = repairDrift(ctx, db, staleLegacy, time.Now())
	if err != nil || applied {
		t.Fatalf("stale unlogged drift: applied=%v err=%v", applied, err)
	}
	var movements int64
	if err := db.Model(&StockMovement{}).Count(&movements).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	if movements != 0 {
		t.Fatalf("stale unlogged drift wrote %d movements", movements)
	}

	missing := ProjectionDrift{Ledger: MovementLedgerCustomer, ProductId: "Q", CustomerId: "C", FromMovements: n(4), Difference: n(-4)}
	if applied, err := repairDrift(ctx, db, missing, time.Now()); err != nil || applied {
		t.Fatalf("missing row: applied=%v err=%v", applied, err)
	}
}
