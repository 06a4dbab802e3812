package models_test

import (
	"context"
	"testing"

	"github.com/mmdatafocus/supplies_backend/models"
	"github.com/mmdatafocus/supplies_backend/utils"
	"github.com/shopspring/decimal"
)

func totalStock(t *testing.T, ctx context.Context, productId string) decimal.Decimal {
	t.Helper()
	rows, err := models.ListWarehouseStocks(ctx, "", productId)
	if err != nil {
		t.Fatalf("ListWarehouseStocks: %v", err)
	}
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.AvailableStock)
	}
	return total
}

func TestTransferConservesStock(t *testing.T) {
	setupLedgerDB(t)
	ctx := context.Background()
	grn := seedStock(t, ctx, "P", "A", 40)

	moved, err := models.InitiateTransfer(ctx, grn.GrnNumber, &models.NewTransfer{ToWarehouse: "B", Quantity: dec(15)})
	if err != nil {
		t.Fatalf("InitiateTransfer: %v", err)
	}
	td := moved.TransferDetails
	if td.Status != models.TransferStatusInTransit || td.FromWarehouse != "A" || td.ProductId != "P" || !td.CreditedAtInitiation {
		t.Fatalf("transfer details: %+v", td)
	}
	if moved.Status != models.StockStatusInTransit {
		t.Fatalf("grn status: got %s", moved.Status)
	}
	assertDecimal(t, "source", stockOf(t, ctx, "P", "A"), 25)
	assertDecimal(t, "destination", stockOf(t, ctx, "P", "B"), 15)
	assertDecimal(t, "total during transit", totalStock(t, ctx, "P"), 40)

	done, err := models.CompleteTransfer(ctx, grn.GrnNumber)
	if err != nil {
		t.Fatalf("CompleteTransfer: %v", err)
	}
	if done.Status != models.StockStatusInWarehouse || done.TransferDetails.Status != models.TransferStatusCompleted || done.TransferDetails.CompletedAt == nil {
		t.Fatalf("after completion: %s %+v", done.Status, done.TransferDetails)
	}
	assertDecimal(t, "total after completion", totalStock(t, ctx, "P"), 40)
	assertDecimal(t, "destination", stockOf(t, ctx, "P", "B"), 15)

	for _, wh := range []string{"A", "B"} {
		s, err := models.GetWarehouseStock(ctx, "P", wh)
		if err != nil {
			t.Fatalf("GetWarehouseStock: %v", err)
		}
		if s.Status != models.StockStatusInWarehouse {
			t.Fatalf("%s status: got %s", wh, s.Status)
		}
	}

	if _, err := models.CompleteTransfer(ctx, grn.GrnNumber); !utils.IsConflictError(err) {
		t.Fatalf("second completion: expected ConflictError, got %v", err)
	}
	if _, err := models.InitiateTransfer(ctx, grn.GrnNumber, &models.NewTransfer{ToWarehouse: "C", Quantity: dec(1)}); !utils.IsConflictError(err) {
		t.Fatalf("initiate after completion: expected ConflictError, got %v", err)
	}
}

func TestTransferCreditDeferredToCompletion(t *testing.T) {
	t.Setenv("TRANSFER_CREDIT_ON_COMPLETE", "true")
	setupLedgerDB(t)
	ctx := context.Background()
	grn := seedStock(t, ctx, "P", "A", 10)

	moved, err := models.InitiateTransfer(ctx, grn.GrnNumber, &models.NewTransfer{ToWarehouse: "B", Quantity: dec(4)})
	if err != nil {
		t.Fatalf("InitiateTransfer: %v", err)
	}
	if moved.TransferDetails.CreditedAtInitiation {
		t.Fatalf("destination should wait for completion")
	}
	dest, err := models.GetWarehouseStock(ctx, "P", "B")
	if err != nil {
		t.Fatalf("GetWarehouseStock: %v", err)
	}
	assertDecimal(t, "destination in transit", dest.AvailableStock, 0)
	if dest.Status != models.StockStatusInTransit || dest.GrnBatchId != grn.GrnNumber {
		t.Fatalf("destination row: %+v", dest)
	}

	if _, err := models.CompleteTransfer(ctx, grn.GrnNumber); err != nil {
		t.Fatalf("CompleteTransfer: %v", err)
	}
	assertDecimal(t, "source", stockOf(t, ctx, "P", "A"), 6)
	assertDecimal(t, "destination", stockOf(t, ctx, "P", "B"), 4)
}

func TestTransferFailures(t *testing.T) {
	setupLedgerDB(t)
	ctx := context.Background()
	grn := seedStock(t, ctx, "P", "A", 5)

	if _, err := models.CompleteTransfer(ctx, grn.GrnNumber); !utils.IsNotFoundError(err) {
		t.Fatalf("complete without transfer: expected NotFoundError, got %v", err)
	}
	if _, err := models.InitiateTransfer(ctx, "GRN-999999", &models.NewTransfer{ToWarehouse: "B", Quantity: dec(1)}); !utils.IsNotFoundError(err) {
		t.Fatalf("unknown GRN: expected NotFoundError, got %v", err)
	}
	if _, err := models.InitiateTransfer(ctx, grn.GrnNumber, &models.NewTransfer{ToWarehouse: "A", Quantity: dec(1)}); !utils.IsValidationError(err) {
		t.Fatalf("same warehouse: expected ValidationError, got %v", err)
	}
	if _, err := models.InitiateTransfer(ctx, grn.GrnNumber, &models.NewTransfer{ProductId: "Q", ToWarehouse: "B", Quantity: dec(1)}); !utils.IsValidationError(err) {
		t.Fatalf("product not on GRN: expected ValidationError, got %v", err)
	}

	_, err := models.InitiateTransfer(ctx, grn.GrnNumber, &models.NewTransfer{ToWarehouse: "B", Quantity: dec(6)})
	if !utils.IsInsufficientStockError(err) {
		t.Fatalf("over-transfer: expected InsufficientStockError, got %v", err)
	}
	assertDecimal(t, "source untouched", stockOf(t, ctx, "P", "A"), 5)
	after, _ := models.GetGRN(ctx, grn.GrnNumber)
	if after.TransferDetails.Exists() || after.Status != models.StockStatusInWarehouse {
		t.Fatalf("failed transfer left state behind: %s %+v", after.Status, after.TransferDetails)
	}

	if _, err := models.InitiateTransfer(ctx, grn.GrnNumber, &models.NewTransfer{ToWarehouse: "B", Quantity: dec(2)}); err != nil {
		t.Fatalf("InitiateTransfer: %v", err)
	}
	if _, err := models.InitiateTransfer(ctx, grn.GrnNumber, &models.NewTransfer{ToWarehouse: "C", Quantity: dec(1)}); !utils.IsConflictError(err) {
		t.Fatalf("double initiate: expected ConflictError, got %v", err)
	}
	assertDecimal(t, "total", totalStock(t, ctx, "P"), 5)
}
