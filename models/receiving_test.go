package models_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/mmdatafocus/supplies_backend/models"
	"github.com/mmdatafocus/supplies_backend/utils"
	"github.com/shopspring/decimal"
)

func TestComputeDisposition(t *testing.T) {
	cases := []struct {
		name                        string
		received, damaged, lost     int64
		customer                    int64
		accepted, warehouse         int64
		wantValidationErr           bool
	}{
		{name: "clean receipt", received: 50, accepted: 50, warehouse: 50},
		{name: "damaged and lost", received: 90, damaged: 5, lost: 5, accepted: 80, warehouse: 80},
		{name: "split", received: 50, customer: 20, accepted: 50, warehouse: 30},
		{name: "split takes all", received: 10, damaged: 2, customer: 8, accepted: 8, warehouse: 0},
		{name: "negative accepted", received: 5, damaged: 4, lost: 2, wantValidationErr: true},
		{name: "allocation above accepted", received: 10, lost: 1, customer: 10, wantValidationErr: true},
		{name: "negative damaged", received: 10, damaged: -1, wantValidationErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := models.ComputeDisposition(models.NewReceiptItem{
				ProductId:        "P1",
				ReceivedQuantity: dec(tc.received),
				DamagedQuantity:  dec(tc.damaged),
				LostQuantity:     dec(tc.lost),
			}, dec(tc.customer))
			if tc.wantValidationErr {
				if !utils.IsValidationError(err) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertDecimal(t, "accepted", d.AcceptedQuantity, tc.accepted)
			assertDecimal(t, "warehouse", d.WarehouseQuantity, tc.warehouse)
			// received = accepted + damaged + lost
			if !d.AcceptedQuantity.Add(dec(tc.damaged)).Add(dec(tc.lost)).Equal(dec(tc.received)) {
				t.Fatalf("quantity not conserved: %+v", d)
			}
		})
	}
}

func TestGoodsReceiptPartialThenFullClosesPurchaseOrder(t *testing.T) {
	db := setupLedgerDB(t)
	ctx := context.Background()

	po := createPO(t, ctx, warehousePO("P1", 100))
	if po.PoNumber != "PO-0001" {
		t.Fatalf("po number: got %s", po.PoNumber)
	}
	if po.Status != models.PurchaseOrderStatusCreated {
		t.Fatalf("po status: got %s", po.Status)
	}

	grn, err := models.PostGoodsReceipt(ctx, &models.NewGoodsReceipt{
		PoNumber:      po.PoNumber,
		WarehouseName: "Main",
		Location:      models.Location{Zone: "A", Rack: "1", Bin: "3"},
		Items: []models.NewReceiptItem{
			{ProductId: "P1", ReceivedQuantity: dec(90), DamagedQuantity: dec(5), LostQuantity: dec(5)},
		},
	})
	if err != nil {
		t.Fatalf("first GRN: %v", err)
	}
	if grn.GrnNumber != "GRN-000001" {
		t.Fatalf("grn number: got %s", grn.GrnNumber)
	}
	if grn.Kind != models.GRNKindCreated || grn.SupplierName != "Acme Paper" {
		t.Fatalf("grn kind/supplier: got %s/%s", grn.Kind, grn.SupplierName)
	}
	item := grn.Items[0]
	assertDecimal(t, "ordered", item.OrderedQuantity, 100)
	assertDecimal(t, "accepted", item.AcceptedQuantity, 80)

	// damaged and lost never reach the warehouse
	stock, err := models.GetWarehouseStock(ctx, "P1", "Main")
	if err != nil {
		t.Fatalf("GetWarehouseStock: %v", err)
	}
	assertDecimal(t, "available", stock.AvailableStock, 80)
	assertDecimal(t, "total received", stock.TotalReceivedFromSupplier, 90)
	if stock.LastSupplier != "Acme Paper" || stock.GrnBatchId != grn.GrnNumber || stock.Location.Bin != "3" {
		t.Fatalf("stock stamps: %+v", stock)
	}

	wastes, err := models.ListWasteEntries(ctx, models.AdjustmentTypeFromGRN)
	if err != nil {
		t.Fatalf("ListWasteEntries: %v", err)
	}
	if len(wastes) != 2 {
		t.Fatalf("waste rows: got %d, want 2", len(wastes))
	}
	reasons := map[models.WasteReason]decimal.Decimal{}
	for _, w := range wastes {
		reasons[w.Reason] = w.Quantity
		if w.Status != models.WasteStatusWasted || w.GrnBatchId != grn.GrnNumber {
			t.Fatalf("waste row: %+v", w)
		}
	}
	assertDecimal(t, "damaged waste", reasons[models.WasteReasonDamaged], 5)
	assertDecimal(t, "lost waste", reasons[models.WasteReasonLost], 5)

	po, err = models.GetPurchaseOrder(ctx, po.PoNumber)
	if err != nil {
		t.Fatalf("GetPurchaseOrder: %v", err)
	}
	assertDecimal(t, "po received", po.ReceivedQuantity, 90)
	assertDecimal(t, "po pending", po.PendingQuantity, 10)
	if po.Status != models.PurchaseOrderStatusPartiallyReceived {
		t.Fatalf("po status: got %s", po.Status)
	}

	if _, err := models.PostGoodsReceipt(ctx, &models.NewGoodsReceipt{
		PoNumber:      po.PoNumber,
		WarehouseName: "Main",
		Items:         []models.NewReceiptItem{{ProductId: "P1", ReceivedQuantity: dec(10)}},
	}); err != nil {
		t.Fatalf("second GRN: %v", err)
	}
	po, _ = models.GetPurchaseOrder(ctx, po.PoNumber)
	assertDecimal(t, "po received", po.ReceivedQuantity, 100)
	assertDecimal(t, "po pending", po.PendingQuantity, 0)
	if po.Status != models.PurchaseOrderStatusClosed {
		t.Fatalf("po status: got %s", po.Status)
	}
	if len(po.GrnLinks) != 2 || po.GrnLinks[1] != "GRN-000002" {
		t.Fatalf("grn links: %v", po.GrnLinks)
	}
	assertDecimal(t, "available", stockOf(t, ctx, "P1", "Main"), 90)

	_, err = models.PostGoodsReceipt(ctx, &models.NewGoodsReceipt{
		PoNumber:      po.PoNumber,
		WarehouseName: "Main",
		Items:         []models.NewReceiptItem{{ProductId: "P1", ReceivedQuantity: dec(1)}},
	})
	if !utils.IsConflictError(err) {
		t.Fatalf("receipt on closed PO: expected ConflictError, got %v", err)
	}
	if n := countRows[models.GRN](t, db, ""); n != 2 {
		t.Fatalf("grn rows: got %d, want 2", n)
	}
}

func TestGoodsReceiptRejectsOverReceipt(t *testing.T) {
	db := setupLedgerDB(t)
	ctx := context.Background()
	po := createPO(t, ctx, warehousePO("P1", 10))

	_, err := models.PostGoodsReceipt(ctx, &models.NewGoodsReceipt{
		PoNumber:      po.PoNumber,
		WarehouseName: "Main",
		Items:         []models.NewReceiptItem{{ProductId: "P1", ReceivedQuantity: dec(11)}},
	})
	if !utils.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	_, err = models.PostGoodsReceipt(ctx, &models.NewGoodsReceipt{
		PoNumber:      po.PoNumber,
		WarehouseName: "Main",
		Items:         []models.NewReceiptItem{{ProductId: "NOT-ON-PO", ReceivedQuantity: dec(1)}},
	})
	if !utils.IsValidationError(err) {
		t.Fatalf("unknown product: expected ValidationError, got %v", err)
	}

	if n := countRows[models.GRN](t, db, ""); n != 0 {
		t.Fatalf("grn rows: got %d, want 0", n)
	}
	if n := countRows[models.WarehouseStock](t, db, ""); n != 0 {
		t.Fatalf("stock rows: got %d, want 0", n)
	}
}

func TestDirectGRNWithSplitAllocation(t *testing.T) {
	setupLedgerDB(t)
	ctx := context.Background()

	grn, err := models.PostGoodsReceipt(ctx, &models.NewGoodsReceipt{
		SupplierName:  "Acme Paper",
		WarehouseName: "W",
		Items:         []models.NewReceiptItem{{ProductId: "P", ProductName: "Stapler", ReceivedQuantity: dec(50), UnitPrice: dec(7)}},
		SplitAllocation: &models.NewSplitAllocation{
			CustomerId:   "C1",
			CustomerName: "Globex",
			Items:        []models.NewAllocationQuantity{{ProductId: "P", Quantity: dec(20)}},
		},
	})
	if err != nil {
		t.Fatalf("PostGoodsReceipt: %v", err)
	}
	if grn.Kind != models.GRNKindDirect || grn.CustomerId != "C1" {
		t.Fatalf("grn: kind %s customer %s", grn.Kind, grn.CustomerId)
	}
	item := grn.Items[0]
	assertDecimal(t, "warehouse quantity", item.WarehouseQuantity, 30)
	assertDecimal(t, "allocation", item.CustomerAllocation.Quantity, 20)
	if !item.WarehouseQuantity.Add(item.CustomerAllocation.Quantity).Equal(item.AcceptedQuantity) {
		t.Fatalf("split does not add up to accepted: %+v", item)
	}

	assertDecimal(t, "warehouse stock", stockOf(t, ctx, "P", "W"), 30)
	inv, err := models.GetCustomerInventory(ctx, "P", "C1")
	if err != nil {
		t.Fatalf("GetCustomerInventory: %v", err)
	}
	assertDecimal(t, "customer quantity", inv.Quantity, 20)
	assertDecimal(t, "customer price", inv.Price, 7)
	if inv.CustomerName != "Globex" {
		t.Fatalf("customer name: got %q", inv.CustomerName)
	}
}

func TestDirectToCustomerPurchaseOrderRoutesToCustomerInventory(t *testing.T) {
	db := setupLedgerDB(t)
	ctx := context.Background()

	po := createPO(t, ctx, models.NewPurchaseOrder{
		SupplierName: "Acme Paper",
		DeliveryType: models.DeliveryTypeDirectToCustomer,
		CustomerId:   "C9",
		CustomerName: "Initech",
		Items:        []models.NewPurchaseOrderItem{{ProductId: "P2", Quantity: dec(40), UnitPrice: dec(3)}},
	})
	grn, err := models.PostGoodsReceipt(ctx, &models.NewGoodsReceipt{
		PoNumber:      po.PoNumber,
		WarehouseName: "Main",
		Items:         []models.NewReceiptItem{{ProductId: "P2", ReceivedQuantity: dec(40), DamagedQuantity: dec(2)}},
	})
	if err != nil {
		t.Fatalf("PostGoodsReceipt: %v", err)
	}
	if grn.Status != models.StockStatusDelivered {
		t.Fatalf("grn status: got %s", grn.Status)
	}
	inv, err := models.GetCustomerInventory(ctx, "P2", "C9")
	if err != nil {
		t.Fatalf("GetCustomerInventory: %v", err)
	}
	assertDecimal(t, "customer quantity", inv.Quantity, 38)
	assertDecimal(t, "seeded price", inv.Price, 3)
	if n := countRows[models.WarehouseStock](t, db, ""); n != 0 {
		t.Fatalf("warehouse rows: got %d, want 0", n)
	}
	po, _ = models.GetPurchaseOrder(ctx, po.PoNumber)
	if po.Status != models.PurchaseOrderStatusClosed {
		t.Fatalf("po status: got %s", po.Status)
	}
}

func TestReferencePurchaseOrderNeverCloses(t *testing.T) {
	setupLedgerDB(t)
	ctx := context.Background()

	input := warehousePO("P1", 5)
	input.Kind = models.PurchaseOrderKindReference
	po := createPO(t, ctx, input)
	if po.Status != models.PurchaseOrderStatusReference {
		t.Fatalf("po status: got %s", po.Status)
	}
	// reference orders skip the ordered-quantity limit
	if _, err := models.PostGoodsReceipt(ctx, &models.NewGoodsReceipt{
		PoNumber:      po.PoNumber,
		WarehouseName: "Main",
		Items:         []models.NewReceiptItem{{ProductId: "P1", ReceivedQuantity: dec(8)}},
	}); err != nil {
		t.Fatalf("PostGoodsReceipt: %v", err)
	}
	po, _ = models.GetPurchaseOrder(ctx, po.PoNumber)
	if po.Status != models.PurchaseOrderStatusReference {
		t.Fatalf("po status: got %s", po.Status)
	}
	assertDecimal(t, "po received", po.ReceivedQuantity, 0)
	if len(po.GrnLinks) != 1 {
		t.Fatalf("grn links: %v", po.GrnLinks)
	}
	assertDecimal(t, "stock", stockOf(t, ctx, "P1", "Main"), 8)
}

func TestCreateGRNFromInwardOnlyOnce(t *testing.T) {
	setupLedgerDB(t)
	ctx := context.Background()
	po := createPO(t, ctx, warehousePO("P1", 30))

	entry, err := models.CreateInwardEntry(ctx, &models.NewInwardEntry{
		PoNumber: po.PoNumber,
		Items:    []models.NewReceiptItem{{ProductId: "P1", ReceivedQuantity: dec(30), LostQuantity: dec(1)}},
	})
	if err != nil {
		t.Fatalf("CreateInwardEntry: %v", err)
	}
	if entry.InwardNumber != fmt.Sprintf("INW-%d-0001", thisYear()) {
		t.Fatalf("inward number: got %s", entry.InwardNumber)
	}
	if entry.Kind != models.InwardKindPOLinked || entry.Status != models.InwardStatusPendingGRN {
		t.Fatalf("inward kind/status: %s/%s", entry.Kind, entry.Status)
	}
	assertDecimal(t, "inward accepted", entry.Items[0].AcceptedQuantity, 29)

	grn, err := models.CreateGRNFromInward(ctx, entry.InwardNumber, &models.NewGRNFromInward{WarehouseName: "Main"})
	if err != nil {
		t.Fatalf("CreateGRNFromInward: %v", err)
	}
	if grn.GrnNumber != fmt.Sprintf("GRN-%d-0001", thisYear()) {
		t.Fatalf("grn number: got %s", grn.GrnNumber)
	}
	if grn.InwardNumber != entry.InwardNumber {
		t.Fatalf("grn inward link: got %s", grn.InwardNumber)
	}

	entry, _ = models.GetInwardEntry(ctx, entry.InwardNumber)
	if entry.Status != models.InwardStatusGRNCreated || len(entry.GrnLinks) != 1 || entry.GrnLinks[0] != grn.GrnNumber {
		t.Fatalf("inward after GRN: %s %v", entry.Status, entry.GrnLinks)
	}
	assertDecimal(t, "stock", stockOf(t, ctx, "P1", "Main"), 29)

	_, err = models.CreateGRNFromInward(ctx, entry.InwardNumber, &models.NewGRNFromInward{WarehouseName: "Main"})
	if !utils.IsConflictError(err) {
		t.Fatalf("second GRN from inward: expected ConflictError, got %v", err)
	}
	assertDecimal(t, "stock unchanged", stockOf(t, ctx, "P1", "Main"), 29)

	_, err = models.CreateGRNFromInward(ctx, "INW-1999-0001", &models.NewGRNFromInward{WarehouseName: "Main"})
	if !utils.IsNotFoundError(err) {
		t.Fatalf("unknown inward: expected NotFoundError, got %v", err)
	}
}

func TestGoodsReceiptIsAllOrNothing(t *testing.T) {
	db := setupLedgerDB(t)
	ctx := context.Background()

	// the customer leg fails after the GRN, waste and warehouse rows were written
	if err := db.Migrator().DropTable(&models.CustomerInventory{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	_, err := models.PostGoodsReceipt(ctx, &models.NewGoodsReceipt{
		SupplierName:  "Acme Paper",
		WarehouseName: "W",
		Items:         []models.NewReceiptItem{{ProductId: "P", ReceivedQuantity: dec(10), DamagedQuantity: dec(1)}},
		SplitAllocation: &models.NewSplitAllocation{
			CustomerId: "C1",
			Items:      []models.NewAllocationQuantity{{ProductId: "P", Quantity: dec(4)}},
		},
	})
	if err == nil {
		t.Fatalf("expected failure")
	}
	for name, n := range map[string]int64{
		"grns":             countRows[models.GRN](t, db, ""),
		"grn_items":        countRows[models.GRNItem](t, db, ""),
		"warehouse_stocks": countRows[models.WarehouseStock](t, db, ""),
		"waste_entries":    countRows[models.WasteEntry](t, db, ""),
		"stock_movements":  countRows[models.StockMovement](t, db, ""),
		"ledger_events":    countRows[models.LedgerEvent](t, db, ""),
	} {
		if n != 0 {
			t.Fatalf("%s: got %d rows after rollback", name, n)
		}
	}
}

func TestGoodsReceiptIdempotencyKeyReplaysGRN(t *testing.T) {
	db := setupLedgerDB(t)
	ctx := utils.SetIdempotencyKeyInContext(context.Background(), "req-42")

	input := models.NewGoodsReceipt{
		SupplierName:  "Acme Paper",
		WarehouseName: "Main",
		Items:         []models.NewReceiptItem{{ProductId: "P1", ReceivedQuantity: dec(12)}},
	}
	first, err := models.PostGoodsReceipt(ctx, &input)
	if err != nil {
		t.Fatalf("first post: %v", err)
	}
	second, err := models.PostGoodsReceipt(ctx, &input)
	if err != nil {
		t.Fatalf("replayed post: %v", err)
	}
	if first.GrnNumber != second.GrnNumber {
		t.Fatalf("replay created %s, want %s", second.GrnNumber, first.GrnNumber)
	}
	if n := countRows[models.GRN](t, db, ""); n != 1 {
		t.Fatalf("grn rows: got %d, want 1", n)
	}
	assertDecimal(t, "stock", stockOf(t, ctx, "P1", "Main"), 12)
}

func TestCreateGRNFromInwardIdempotencyKeyReplaysGRN(t *testing.T) {
	db := setupLedgerDB(t)
	po := createPO(t, context.Background(), warehousePO("P1", 20))
	entry, err := models.CreateInwardEntry(context.Background(), &models.NewInwardEntry{
		PoNumber: po.PoNumber,
		Items:    []models.NewReceiptItem{{ProductId: "P1", ReceivedQuantity: dec(20)}},
	})
	if err != nil {
		t.Fatalf("CreateInwardEntry: %v", err)
	}

	// the retry arrives after the first call already moved the entry to GRN_CREATED
	ctx := utils.SetIdempotencyKeyInContext(context.Background(), "inward-req-7")
	input := models.NewGRNFromInward{WarehouseName: "Main"}
	want := fmt.Sprintf("GRN-%d-0001", thisYear())
	for i := 0; i < 2; i++ {
		grn, err := models.CreateGRNFromInward(ctx, entry.InwardNumber, &input)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if grn.GrnNumber != want {
			t.Fatalf("call %d: got %s, want %s", i, grn.GrnNumber, want)
		}
	}
	if n := countRows[models.GRN](t, db, ""); n != 1 {
		t.Fatalf("grn rows: got %d, want 1", n)
	}
	assertDecimal(t, "stock", stockOf(t, ctx, "P1", "Main"), 20)

	// a different key still hits the state check
	other := utils.SetIdempotencyKeyInContext(context.Background(), "inward-req-8")
	if _, err := models.CreateGRNFromInward(other, entry.InwardNumber, &input); !utils.IsConflictError(err) {
		t.Fatalf("fresh key: expected ConflictError, got %v", err)
	}
}

type fakeCatalog map[string]models.Product

func (f fakeCatalog) LookupProduct(_ context.Context, productId string) (*models.Product, error) {
	p, ok := f[productId]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type fakeDirectory map[string]models.Customer

func (f fakeDirectory) LookupCustomer(_ context.Context, customerId string) (*models.Customer, error) {
	c, ok := f[customerId]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func TestDirectGRNBackfillsFromCollaborators(t *testing.T) {
	setupLedgerDB(t)
	ctx := context.Background()

	prevCatalog := models.SetProductCatalog(fakeCatalog{"P7": {ProductId: "P7", Name: "Toner", Supplier: "Inkworks"}})
	prevDirectory := models.SetCustomerDirectory(fakeDirectory{"C3": {CustomerId: "C3", Name: "Umbrella"}})
	t.Cleanup(func() {
		models.SetProductCatalog(prevCatalog)
		models.SetCustomerDirectory(prevDirectory)
	})

	grn, err := models.PostGoodsReceipt(ctx, &models.NewGoodsReceipt{
		WarehouseName: "Main",
		Items:         []models.NewReceiptItem{{ProductId: "P7", ReceivedQuantity: dec(6)}},
		SplitAllocation: &models.NewSplitAllocation{
			CustomerId: "C3",
			Items:      []models.NewAllocationQuantity{{ProductId: "P7", Quantity: dec(2)}},
		},
	})
	if err != nil {
		t.Fatalf("PostGoodsReceipt: %v", err)
	}
	if grn.SupplierName != "Inkworks" || grn.Items[0].ProductName != "Toner" || grn.CustomerName != "Umbrella" {
		t.Fatalf("backfill: supplier %q product %q customer %q", grn.SupplierName, grn.Items[0].ProductName, grn.CustomerName)
	}

	_, err = models.PostGoodsReceipt(ctx, &models.NewGoodsReceipt{
		WarehouseName: "Main",
		Items:         []models.NewReceiptItem{{ProductId: "UNKNOWN", ReceivedQuantity: dec(1)}},
	})
	if !utils.IsValidationError(err) {
		t.Fatalf("missing supplier: expected ValidationError, got %v", err)
	}
}
