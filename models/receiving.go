package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NewReceiptItem struct {
	ProductId        string          `json:"productId" binding:"required"`
	ProductName      string          `json:"productName"`
	OrderedQuantity  decimal.Decimal `json:"orderedQuantity"`
	ReceivedQuantity decimal.Decimal `json:"receivedQuantity"`
	DamagedQuantity  decimal.Decimal `json:"damagedQuantity"`
	LostQuantity     decimal.Decimal `json:"lostQuantity"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
}

// NewSplitAllocation hands part of the accepted quantity of each listed product to one customer.
type NewSplitAllocation struct {
	CustomerId   string                  `json:"customerId" binding:"required"`
	CustomerName string                  `json:"customerName"`
	Items        []NewAllocationQuantity `json:"items" binding:"required,min=1,dive"`
}

type NewAllocationQuantity struct {
	ProductId string          `json:"productId" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// NewGoodsReceipt posts a GRN directly, with or without a purchase order.
type NewGoodsReceipt struct {
	PoNumber        string              `json:"poNumber"`
	SupplierName    string              `json:"supplierName"`
	WarehouseName   string              `json:"warehouseName" binding:"required"`
	Location        Location            `json:"location"`
	ReceivedDate    *time.Time          `json:"receivedDate"`
	Items           []NewReceiptItem    `json:"items" binding:"required,min=1,dive"`
	SplitAllocation *NewSplitAllocation `json:"splitAllocation"`
}

// NewGRNFromInward posts the GRN of a staged inward entry. Items come from the entry.
type NewGRNFromInward struct {
	WarehouseName   string              `json:"warehouseName" binding:"required"`
	Location        Location            `json:"location"`
	SplitAllocation *NewSplitAllocation `json:"splitAllocation"`
}

// Disposition is how one received line splits between waste, warehouse and customer.
type Disposition struct {
	AcceptedQuantity  decimal.Decimal `json:"acceptedQuantity"`
	CustomerQuantity  decimal.Decimal `json:"customerQuantity"`
	WarehouseQuantity decimal.Decimal `json:"warehouseQuantity"`
}

// ComputeDisposition returns accepted = received - damaged - lost and
// warehouse = accepted - customerQuantity. Either going negative is a ValidationError.
func ComputeDisposition(item NewReceiptItem, customerQuantity decimal.Decimal) (Disposition, error) {
	for _, q := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"receivedQuantity", item.ReceivedQuantity},
		{"damagedQuantity", item.DamagedQuantity},
		{"lostQuantity", item.LostQuantity},
		{"customer allocation", customerQuantity},
	} {
		if err := requireNonNegative(q.name, item.ProductId, q.value); err != nil {
			return Disposition{}, err
		}
	}
	accepted := item.ReceivedQuantity.Sub(item.DamagedQuantity).Sub(item.LostQuantity)
	if accepted.IsNegative() {
		return Disposition{}, utils.NewValidationError("accepted quantity for product %s cannot be negative (received %s, damaged %s, lost %s)",
			item.ProductId, item.ReceivedQuantity, item.DamagedQuantity, item.LostQuantity)
	}
	warehouse := accepted.Sub(customerQuantity)
	if warehouse.IsNegative() {
		return Disposition{}, utils.NewValidationError("customer allocation %s for product %s exceeds accepted quantity %s",
			customerQuantity, item.ProductId, accepted)
	}
	return Disposition{
		AcceptedQuantity:  accepted,
		CustomerQuantity:  customerQuantity,
		WarehouseQuantity: warehouse,
	}, nil
}

type receiptPlan struct {
	kind          GRNKind
	numberKind    DocumentNumberKind
	poNumber      string
	inwardNumber  string
	supplier      string
	warehouse     string
	location      Location
	receivedDate  time.Time
	items         []NewReceiptItem
	split         *NewSplitAllocation
	splitQuantity map[string]decimal.Decimal
	deliverTo     string
}

func (p *receiptPlan) customerQuantityFor(productId string) decimal.Decimal {
	if p.split == nil {
		return decimal.Zero
	}
	return p.splitQuantity[productId]
}

// prepare runs the checks that need no lock: shape, arithmetic, split coverage and name backfills.
func (p *receiptPlan) prepare(ctx context.Context) error {
	if p.split != nil {
		if err := utils.ValidateStruct(p.split); err != nil {
			return err
		}
		seen := make(map[string]bool, len(p.items))
		for _, item := range p.items {
			if seen[item.ProductId] {
				return utils.NewValidationError("product %s appears more than once; split allocation needs one line per product", item.ProductId)
			}
			seen[item.ProductId] = true
		}
		p.splitQuantity = make(map[string]decimal.Decimal, len(p.split.Items))
		for _, a := range p.split.Items {
			if !seen[a.ProductId] {
				return utils.NewValidationError("split allocation product %s is not in the receipt", a.ProductId)
			}
			p.splitQuantity[a.ProductId] = p.splitQuantity[a.ProductId].Add(a.Quantity)
		}
		if p.split.CustomerName == "" {
			p.split.CustomerName = lookupCustomerName(ctx, p.split.CustomerId)
		}
	}
	for i, item := range p.items {
		if _, err := ComputeDisposition(item, p.customerQuantityFor(item.ProductId)); err != nil {
			return err
		}
		if item.ProductName == "" {
			p.items[i].ProductName = lookupProductName(ctx, item.ProductId)
		}
	}

	if p.poNumber != "" {
		po, err := GetPurchaseOrder(ctx, p.poNumber)
		if err != nil {
			return err
		}
		if p.supplier == "" {
			p.supplier = po.SupplierName
		}
		if routesToCustomer(po) {
			p.deliverTo = po.CustomerId
		}
		p.kind = GRNKindCreated
	} else {
		p.kind = GRNKindDirect
	}
	if p.supplier == "" {
		p.supplier = lookupSupplier(ctx, p.items[0].ProductId)
	}
	if p.supplier == "" {
		return utils.NewValidationError("supplierName is required")
	}
	return nil
}

// lockKeys names every ledger row the receipt can credit.
func (p *receiptPlan) lockKeys() []string {
	customerId := p.deliverTo
	if p.split != nil {
		customerId = p.split.CustomerId
	}
	keys := make([]string, 0, 2*len(p.items))
	for _, item := range p.items {
		keys = append(keys, warehouseStockLockKey(item.ProductId, p.warehouse))
		if customerId != "" {
			keys = append(keys, customerInventoryLockKey(item.ProductId, customerId))
		}
	}
	return keys
}

// PostGoodsReceipt creates a GRN-XXXXXX straight from a delivery.
func PostGoodsReceipt(ctx context.Context, input *NewGoodsReceipt) (*GRN, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	receivedDate := nowFunc()
	if input.ReceivedDate != nil {
		receivedDate = *input.ReceivedDate
	}
	plan := &receiptPlan{
		numberKind:   DocumentNumberGRNDirect,
		poNumber:     input.PoNumber,
		supplier:     input.SupplierName,
		warehouse:    input.WarehouseName,
		location:     input.Location,
		receivedDate: receivedDate,
		items:        append([]NewReceiptItem(nil), input.Items...),
		split:        input.SplitAllocation,
	}
	return postReceipt(ctx, plan)
}

// CreateGRNFromInward turns a PENDING_GRN inward entry into a GRN-<year>-XXXX.
func CreateGRNFromInward(ctx context.Context, inwardNumber string, input *NewGRNFromInward) (*GRN, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	// the status check runs under lock in postReceipt, after a replayed key has been answered
	entry, err := GetInwardEntry(ctx, inwardNumber)
	if err != nil {
		return nil, err
	}
	items := make([]NewReceiptItem, 0, len(entry.Items))
	for _, item := range entry.Items {
		items = append(items, item.receiptItem())
	}
	plan := &receiptPlan{
		numberKind:   DocumentNumberGRNInward,
		poNumber:     entry.PoNumber,
		inwardNumber: entry.InwardNumber,
		supplier:     entry.SupplierName,
		warehouse:    input.WarehouseName,
		location:     input.Location,
		receivedDate: entry.ReceivedDate,
		items:        items,
		split:        input.SplitAllocation,
	}
	return postReceipt(ctx, plan)
}

// postReceipt applies one GRN and all of its ledger effects in a single transaction.
func postReceipt(ctx context.Context, plan *receiptPlan) (*GRN, error) {
	ctx, span := tracer.Start(ctx, "postReceipt")
	defer span.End()

	if err := plan.prepare(ctx); err != nil {
		return nil, err
	}
	logger := config.GetLogger()
	db := config.GetDB()

	unlock, err := utils.StockLock(ctx, "Receiving", "postReceipt", plan.lockKeys()...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx := db.Begin()
	fail := func(err error) (*GRN, error) {
		tx.Rollback()
		return nil, err
	}

	if ref, ok, err := findIdempotentReference(ctx, tx, IdempotencyScopeGRN); err != nil {
		return fail(err)
	} else if ok {
		tx.Rollback()
		return GetGRN(ctx, ref)
	}

	var po *PurchaseOrder
	if plan.poNumber != "" {
		var locked PurchaseOrder
		err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").Where("po_number = ?", plan.poNumber).First(&locked).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(utils.NewNotFoundError("PurchaseOrder", plan.poNumber))
		} else if err != nil {
			return fail(err)
		}
		po = &locked
		if err := checkReceiptAgainstPurchaseOrder(po, plan.items); err != nil {
			return fail(err)
		}
	}

	var inward *InwardEntry
	if plan.inwardNumber != "" {
		var locked InwardEntry
		err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("inward_number = ?", plan.inwardNumber).First(&locked).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(utils.NewNotFoundError("InwardEntry", plan.inwardNumber))
		} else if err != nil {
			return fail(err)
		}
		if _, err := locked.Status.Next(InwardEventGRNPosted); err != nil {
			return fail(err)
		}
		inward = &locked
	}

	grnNumber, err := nextDocumentNumber(ctx, tx, plan.numberKind)
	if err != nil {
		config.LogError(logger, "Receiving", "postReceipt", "Error issuing GRN number", plan.numberKind, err)
		return fail(err)
	}

	grn := buildGRN(plan, po, grnNumber)
	if err := tx.WithContext(ctx).Create(&grn).Error; err != nil {
		config.LogError(logger, "Receiving", "postReceipt", "Error creating GRN", grnNumber, err)
		return fail(err)
	}

	receivedSum := decimal.Zero
	for _, item := range grn.Items {
		if err := recordReceivingWaste(ctx, tx, &grn, item); err != nil {
			return fail(err)
		}
		if err := applyReceiptItem(ctx, tx, &grn, po, item, plan.split != nil); err != nil {
			config.LogError(logger, "Receiving", "postReceipt", "Error applying GRN item", item, err)
			return fail(err)
		}
		receivedSum = receivedSum.Add(item.ReceivedQuantity)
	}

	if po != nil {
		if err := applyPurchaseOrderReceipt(ctx, tx, po, grn.GrnNumber, receivedSum); err != nil {
			return fail(err)
		}
	}
	if inward != nil {
		if err := markInwardReceived(ctx, tx, inward, grn.GrnNumber); err != nil {
			return fail(err)
		}
	}

	if err := recordLedgerEvent(ctx, tx, LedgerEventGRNPosted, "GRN", grn.GrnNumber, grn); err != nil {
		return fail(err)
	}
	if err := rememberIdempotentReference(ctx, tx, IdempotencyScopeGRN, grn.GrnNumber); err != nil {
		tx.Rollback()
		if isDuplicateKeyErr(err) {
			if ref, ok := lookupIdempotentReference(ctx, db, IdempotencyScopeGRN); ok {
				return GetGRN(ctx, ref)
			}
		}
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "Receiving", "postReceipt", "Error committing GRN", grn.GrnNumber, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("grn.number", grn.GrnNumber))
	logger.WithFields(logrus.Fields{
		"field":         "postReceipt",
		"grn_number":    grn.GrnNumber,
		"po_number":     grn.PoNumber,
		"inward_number": grn.InwardNumber,
		"kind":          grn.Kind,
		"items":         len(grn.Items),
	}).Info("GRN posted")
	return GetGRN(ctx, grn.GrnNumber)
}

// checkReceiptAgainstPurchaseOrder enforces closure and per-line ordered limits.
// Reference orders are informational and accept anything.
func checkReceiptAgainstPurchaseOrder(po *PurchaseOrder, items []NewReceiptItem) error {
	if po.IsReference() {
		return nil
	}
	if po.Status.IsTerminal() {
		return utils.NewConflictError("purchase order %s is already closed", po.PoNumber)
	}
	for _, item := range items {
		ordered, ok := po.orderedQuantityFor(item.ProductId)
		if !ok {
			return utils.NewValidationError("product %s is not on purchase order %s", item.ProductId, po.PoNumber)
		}
		if item.ReceivedQuantity.GreaterThan(ordered) {
			return utils.NewValidationError("received quantity %s for product %s exceeds ordered quantity %s",
				item.ReceivedQuantity, item.ProductId, ordered)
		}
	}
	return nil
}

func buildGRN(plan *receiptPlan, po *PurchaseOrder, grnNumber string) GRN {
	grn := GRN{
		GrnNumber:     grnNumber,
		PoNumber:      plan.poNumber,
		InwardNumber:  plan.inwardNumber,
		Kind:          plan.kind,
		SupplierName:  plan.supplier,
		WarehouseName: plan.warehouse,
		Location:      plan.location,
		Status:        StockStatusInWarehouse,
		ReceivedDate:  plan.receivedDate,
	}
	if plan.split != nil {
		grn.CustomerId = plan.split.CustomerId
		grn.CustomerName = plan.split.CustomerName
	} else if routesToCustomer(po) {
		grn.CustomerId = po.CustomerId
		grn.CustomerName = po.CustomerName
		grn.Status = StockStatusDelivered
	}

	for _, in := range plan.items {
		// already validated in prepare
		d, _ := ComputeDisposition(in, plan.customerQuantityFor(in.ProductId))
		item := GRNItem{
			ProductId:         in.ProductId,
			ProductName:       in.ProductName,
			OrderedQuantity:   in.OrderedQuantity,
			ReceivedQuantity:  in.ReceivedQuantity,
			AcceptedQuantity:  d.AcceptedQuantity,
			DamagedQuantity:   in.DamagedQuantity,
			LostQuantity:      in.LostQuantity,
			WarehouseQuantity: d.WarehouseQuantity,
			UnitPrice:         in.UnitPrice,
		}
		if po != nil {
			if ordered, ok := po.orderedQuantityFor(in.ProductId); ok {
				item.OrderedQuantity = ordered
			}
			if item.UnitPrice.IsZero() {
				item.UnitPrice = po.unitPriceFor(in.ProductId)
			}
		}
		if plan.split != nil {
			item.CustomerAllocation = CustomerAllocation{
				CustomerId:   plan.split.CustomerId,
				CustomerName: plan.split.CustomerName,
				Quantity:     d.CustomerQuantity,
			}
		}
		grn.Items = append(grn.Items, item)
	}
	return grn
}
