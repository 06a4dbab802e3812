package models_test

import (
	"context"
	"testing"

	"github.com/mmdatafocus/supplies_backend/models"
)

func TestProjectionsMatchMovementLog(t *testing.T) {
	setupLedgerDB(t)
	ctx := context.Background()

	grn := seedStock(t, ctx, "P", "W", 30)
	if _, err := models.PostGoodsReceipt(ctx, &models.NewGoodsReceipt{
		SupplierName:  "Acme Paper",
		WarehouseName: "W",
		Items:         []models.NewReceiptItem{{ProductId: "Q", ReceivedQuantity: dec(10), DamagedQuantity: dec(1)}},
		SplitAllocation: &models.NewSplitAllocation{
			CustomerId: "C",
			Items:      []models.NewAllocationQuantity{{ProductId: "Q", Quantity: dec(4)}},
		},
	}); err != nil {
		t.Fatalf("PostGoodsReceipt: %v", err)
	}
	if _, err := models.InitiateTransfer(ctx, grn.GrnNumber, &models.NewTransfer{ToWarehouse: "B", Quantity: dec(5)}); err != nil {
		t.Fatalf("InitiateTransfer: %v", err)
	}
	if _, err := issue(ctx, "P", "C", 2, models.OutwardTypeSample); err != nil {
		t.Fatalf("IssueOutward: %v", err)
	}

	report, err := models.ReconcileProjections(ctx)
	if err != nil {
		t.Fatalf("ReconcileProjections: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("unexpected drift: %+v", report.Drifts)
	}
	if report.WarehouseRows != 3 || report.CustomerRows != 1 {
		t.Fatalf("rows checked: %d warehouse, %d customer", report.WarehouseRows, report.CustomerRows)
	}

	movements, err := models.ListStockMovements(ctx, models.MovementLedgerWarehouse, "P")
	if err != nil {
		t.Fatalf("ListStockMovements: %v", err)
	}
	sum := dec(0)
	for _, m := range movements {
		sum = sum.Add(m.Quantity)
	}
	// 30 received, 2 issued; the transfer nets to zero
	assertDecimal(t, "movement sum for P", sum, 28)
}

func TestRebuildRepairsTamperedProjection(t *testing.T) {
	db := setupLedgerDB(t)
	ctx := context.Background()
	seedStock(t, ctx, "P", "W", 12)

	if err := db.Model(&models.WarehouseStock{}).Where("product_id = ?", "P").
		Update("available_stock", dec(99)).Error; err != nil {
		t.Fatalf("tamper: %v", err)
	}
	// a row that predates the movement log
	if err := db.Create(&models.CustomerInventory{ProductId: "P", CustomerId: "LEGACY", Quantity: dec(7)}).Error; err != nil {
		t.Fatalf("legacy row: %v", err)
	}

	report, err := models.ReconcileProjections(ctx)
	if err != nil {
		t.Fatalf("ReconcileProjections: %v", err)
	}
	if len(report.Drifts) != 2 {
		t.Fatalf("drifts: got %+v", report.Drifts)
	}
	for _, d := range report.Drifts {
		switch d.Ledger {
		case models.MovementLedgerWarehouse:
			assertDecimal(t, "warehouse difference", d.Difference, 87)
			if d.Unlogged {
				t.Fatalf("warehouse row has movements")
			}
		case models.MovementLedgerCustomer:
			if !d.Unlogged {
				t.Fatalf("legacy row should be unlogged")
			}
		}
	}

	report, err = models.RebuildProjections(ctx)
	if err != nil {
		t.Fatalf("RebuildProjections: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("drift after rebuild: %+v", report.Drifts)
	}
	if report.Repaired != 2 || len(report.Skipped) != 0 {
		t.Fatalf("rebuild: repaired %d, skipped %+v", report.Repaired, report.Skipped)
	}
	assertDecimal(t, "restored stock", stockOf(t, ctx, "P", "W"), 12)
	inv, err := models.GetCustomerInventory(ctx, "P", "LEGACY")
	if err != nil {
		t.Fatalf("GetCustomerInventory: %v", err)
	}
	assertDecimal(t, "adopted legacy quantity", inv.Quantity, 7)
}
