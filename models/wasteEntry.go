package models

import (
	"context"
	"strconv"
	"time"

	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// WasteEntry records stock that became unusable. Rows are never edited or deleted.
type WasteEntry struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ProductId      string          `gorm:"size:64;not null;index" json:"productId"`
	ProductName    string          `gorm:"size:255" json:"productName"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	WarehouseName  string          `gorm:"size:255;index" json:"warehouseName"`
	SupplierName   string          `gorm:"size:255" json:"supplierName"`
	Reason         WasteReason     `gorm:"size:20;not null" json:"reason"`
	Description    string          `gorm:"type:text" json:"description"`
	Date           time.Time       `json:"date"`
	GrnBatchId     string          `gorm:"size:64;index" json:"grnBatchId,omitempty"`
	AdjustmentType AdjustmentType  `gorm:"size:20;not null;index" json:"adjustmentType"`
	Status         WasteStatus     `gorm:"size:20;not null" json:"status"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"createdAt"`
}

// NewWasteEntry writes off stock without a GRN reference.
type NewWasteEntry struct {
	ProductId     string          `json:"productId" binding:"required"`
	ProductName   string          `json:"productName"`
	WarehouseName string          `json:"warehouseName" binding:"required"`
	Quantity      decimal.Decimal `json:"quantity"`
	Reason        WasteReason     `json:"reason" binding:"required,oneof=damaged expired lost other"`
	Description   string          `json:"description"`
	SupplierName  string          `json:"supplierName"`
	Date          *time.Time      `json:"date"`
}

// NewStockAdjustment writes off stock that an earlier GRN already posted.
type NewStockAdjustment struct {
	GrnBatchId    string          `json:"grnBatchId" binding:"required"`
	ProductId     string          `json:"productId" binding:"required"`
	WarehouseName string          `json:"warehouseName" binding:"required"`
	Quantity      decimal.Decimal `json:"quantity"`
	Reason        WasteReason     `json:"reason" binding:"required,oneof=damaged expired lost other"`
	Description   string          `json:"description"`
	Date          *time.Time      `json:"date"`
}

// recordReceivingWaste writes the from_grn rows for what was damaged or lost at the dock.
// These quantities never reach WarehouseStock.
func recordReceivingWaste(ctx context.Context, tx *gorm.DB, grn *GRN, item GRNItem) error {
	for _, w := range []struct {
		reason   WasteReason
		quantity decimal.Decimal
	}{
		{WasteReasonDamaged, item.DamagedQuantity},
		{WasteReasonLost, item.LostQuantity},
	} {
		if !w.quantity.IsPositive() {
			continue
		}
		entry := WasteEntry{
			ProductId:      item.ProductId,
			ProductName:    item.ProductName,
			Quantity:       w.quantity,
			WarehouseName:  grn.WarehouseName,
			SupplierName:   grn.SupplierName,
			Reason:         w.reason,
			Description:    "recorded during receiving of " + grn.GrnNumber,
			Date:           grn.ReceivedDate,
			GrnBatchId:     grn.GrnNumber,
			AdjustmentType: AdjustmentTypeFromGRN,
			Status:         WasteStatusWasted,
		}
		if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
			return err
		}
	}
	return nil
}

// wasteSupplier walks stock.lastSupplier, then the latest PO for the product, then the catalog.
func wasteSupplier(ctx context.Context, productId string, warehouseName string) string {
	db := config.GetDB()
	var stock WarehouseStock
	if err := db.WithContext(ctx).Where("product_id = ? AND warehouse_name = ?", productId, warehouseName).
		Limit(1).Find(&stock).Error; err == nil && stock.LastSupplier != "" {
		return stock.LastSupplier
	}
	var suppliers []string
	err := db.WithContext(ctx).Model(&PurchaseOrder{}).
		Joins("JOIN purchase_order_items ON purchase_order_items.purchase_order_id = purchase_orders.id").
		Where("purchase_order_items.product_id = ?", productId).
		Order("purchase_orders.id DESC").Limit(1).
		Pluck("purchase_orders.supplier_name", &suppliers).Error
	if err == nil && len(suppliers) > 0 && suppliers[0] != "" {
		return suppliers[0]
	}
	return lookupSupplier(ctx, productId)
}

func RecordWaste(ctx context.Context, input *NewWasteEntry) (*WasteEntry, error) {
	ctx, span := tracer.Start(ctx, "RecordWaste")
	defer span.End()

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := requirePositive("quantity", input.Quantity); err != nil {
		return nil, err
	}
	supplier := input.SupplierName
	if supplier == "" {
		supplier = wasteSupplier(ctx, input.ProductId, input.WarehouseName)
	}
	date := nowFunc()
	if input.Date != nil {
		date = *input.Date
	}
	entry := WasteEntry{
		ProductId:      input.ProductId,
		ProductName:    input.ProductName,
		Quantity:       input.Quantity,
		WarehouseName:  input.WarehouseName,
		SupplierName:   supplier,
		Reason:         input.Reason,
		Description:    input.Description,
		Date:           date,
		AdjustmentType: AdjustmentTypeFromGRN,
		Status:         WasteStatusWasted,
	}
	if err := writeOff(ctx, &entry, MovementTypeWaste, LedgerEventWasteRecorded); err != nil {
		return nil, err
	}
	return &entry, nil
}

func RecordPostGRNAdjustment(ctx context.Context, input *NewStockAdjustment) (*WasteEntry, error) {
	ctx, span := tracer.Start(ctx, "RecordPostGRNAdjustment")
	defer span.End()

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := requirePositive("quantity", input.Quantity); err != nil {
		return nil, err
	}
	grn, err := GetGRN(ctx, input.GrnBatchId)
	if err != nil {
		return nil, err
	}
	productName := ""
	if item, ok := grn.itemFor(input.ProductId); ok {
		productName = item.ProductName
	}
	date := nowFunc()
	if input.Date != nil {
		date = *input.Date
	}
	entry := WasteEntry{
		ProductId:      input.ProductId,
		ProductName:    productName,
		Quantity:       input.Quantity,
		WarehouseName:  input.WarehouseName,
		SupplierName:   grn.SupplierName,
		Reason:         input.Reason,
		Description:    input.Description,
		Date:           date,
		GrnBatchId:     grn.GrnNumber,
		AdjustmentType: AdjustmentTypePostGRN,
		Status:         WasteStatusAdjusted,
	}
	if err := writeOff(ctx, &entry, MovementTypeAdjustment, LedgerEventStockAdjusted); err != nil {
		return nil, err
	}
	return &entry, nil
}

// writeOff deducts the entry's quantity from WarehouseStock and stores the entry, atomically.
func writeOff(ctx context.Context, entry *WasteEntry, movementType MovementType, eventType LedgerEventType) error {
	logger := config.GetLogger()
	unlock, err := utils.StockLock(ctx, "WasteEntry", "writeOff", warehouseStockLockKey(entry.ProductId, entry.WarehouseName))
	if err != nil {
		return err
	}
	defer unlock()

	// ad-hoc waste has no GRN to point at
	reference := entry.GrnBatchId
	if reference == "" {
		reference = entry.WarehouseName
	}
	db := config.GetDB()
	tx := db.Begin()

	stock, err := debitWarehouseStock(ctx, tx, warehouseDebit{
		ProductId:       entry.ProductId,
		WarehouseName:   entry.WarehouseName,
		Quantity:        entry.Quantity,
		MovementType:    movementType,
		ReferenceType:   "WasteEntry",
		ReferenceNumber: reference,
	})
	if err != nil {
		tx.Rollback()
		return err
	}
	if entry.ProductName == "" {
		entry.ProductName = stock.ProductName
	}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		tx.Rollback()
		config.LogError(logger, "WasteEntry", "writeOff", "Error creating waste entry", entry, err)
		return err
	}
	if err := recordLedgerEvent(ctx, tx, eventType, "WasteEntry", strconv.Itoa(entry.ID), entry); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "WasteEntry", "writeOff", "Error committing waste entry", entry, err)
		return err
	}

	logger.WithFields(logrus.Fields{
		"field":           "writeOff",
		"product_id":      entry.ProductId,
		"warehouse_name":  entry.WarehouseName,
		"quantity":        entry.Quantity.String(),
		"adjustment_type": entry.AdjustmentType,
	}).Info("stock written off")
	return nil
}

func ListWasteEntries(ctx context.Context, adjustmentType AdjustmentType) ([]WasteEntry, error) {
	filters := map[string]any{}
	if adjustmentType != "" {
		filters["adjustment_type"] = adjustmentType
	}
	return utils.ListModels[WasteEntry](ctx, config.GetDB(), filters)
}
