package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// setupLedgerDB installs a fresh in-memory database as the global handle.
func setupLedgerDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), config.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection keeps a single in-memory database and serializes transactions
	sqlDB.SetMaxOpenConns(1)

	if err := config.InstallPlugins(db); err != nil {
		t.Fatalf("install plugins: %v", err)
	}
	if err := models.MigrateSchema(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	prev := config.GetDB()
	config.SetDB(db)
	config.SetRedis(nil)
	t.Cleanup(func() {
		config.SetDB(prev)
		_ = sqlDB.Close()
	})
	return db
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func assertDecimal(t *testing.T, what string, got decimal.Decimal, want int64) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: got %s, want %d", what, got, want)
	}
}

func createPO(t *testing.T, ctx context.Context, input models.NewPurchaseOrder) *models.PurchaseOrder {
	t.Helper()
	po, err := models.CreatePurchaseOrder(ctx, &input)
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	return po
}

func warehousePO(productId string, quantity int64) models.NewPurchaseOrder {
	return models.NewPurchaseOrder{
		SupplierName: "Acme Paper",
		DeliveryType: models.DeliveryTypeToWarehouse,
		Items: []models.NewPurchaseOrderItem{
			{ProductId: productId, ProductName: "A4 Paper", Quantity: dec(quantity), UnitPrice: dec(4)},
		},
	}
}

// seedStock posts a direct GRN so the warehouse holds quantity of productId.
func seedStock(t *testing.T, ctx context.Context, productId string, warehouse string, quantity int64) *models.GRN {
	t.Helper()
	grn, err := models.PostGoodsReceipt(ctx, &models.NewGoodsReceipt{
		SupplierName:  "Acme Paper",
		WarehouseName: warehouse,
		Items: []models.NewReceiptItem{
			{ProductId: productId, ProductName: "A4 Paper", ReceivedQuantity: dec(quantity)},
		},
	})
	if err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return grn
}

func stockOf(t *testing.T, ctx context.Context, productId string, warehouse string) decimal.Decimal {
	t.Helper()
	stock, err := models.GetWarehouseStock(ctx, productId, warehouse)
	if err != nil {
		t.Fatalf("GetWarehouseStock(%s, %s): %v", productId, warehouse, err)
	}
	return stock.AvailableStock
}

func countRows[T any](t *testing.T, db *gorm.DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(new(T))
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func thisYear() int {
	return time.Now().UTC().Year()
}
