package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WarehouseStock is the on-hand quantity of one product in one named warehouse.
type WarehouseStock struct {
	ID                        int             `gorm:"primary_key" json:"id"`
	ProductId                 string          `gorm:"size:64;not null;index:uniq_stock_product_warehouse,unique" json:"productId"`
	WarehouseName             string          `gorm:"size:255;not null;index:uniq_stock_product_warehouse,unique" json:"warehouseName"`
	ProductName               string          `gorm:"size:255" json:"productName"`
	AvailableStock            decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"availableStock"`
	TotalReceivedFromSupplier decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"totalReceivedFromSupplier"`
	LastReceivedDate          *time.Time      `json:"lastReceivedDate"`
	LastSupplier              string          `gorm:"size:255" json:"lastSupplier"`
	GrnBatchId                string          `gorm:"size:64;index" json:"grnBatchId"`
	Location                  Location        `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	Status                    StockStatus     `gorm:"size:20;not null;default:'IN_WAREHOUSE'" json:"status"`
	CreatedAt                 time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt                 time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

type warehouseCredit struct {
	ProductId     string
	ProductName   string
	WarehouseName string
	Quantity      decimal.Decimal
	// only GRN receipts count towards totalReceivedFromSupplier
	ReceivedFromSupplier decimal.Decimal
	Supplier             string
	GrnBatchId           string
	Location             Location
	ReceivedDate         *time.Time
	Status               StockStatus
	MovementType         MovementType
	ReferenceType        string
	ReferenceNumber      string
}

// creditWarehouseStock upserts the (product, warehouse) row and adds Quantity to it.
func creditWarehouseStock(ctx context.Context, tx *gorm.DB, c warehouseCredit) error {
	if c.Status == "" {
		c.Status = StockStatusInWarehouse
	}
	row := WarehouseStock{
		ProductId:     c.ProductId,
		WarehouseName: c.WarehouseName,
		ProductName:   c.ProductName,
		Status:        c.Status,
	}
	if err := firstOrCreateForUpdate(tx.WithContext(ctx), &row, "product_id = ? AND warehouse_name = ?", c.ProductId, c.WarehouseName); err != nil {
		return err
	}

	updates := map[string]interface{}{
		"available_stock": gorm.Expr("available_stock + ?", c.Quantity),
		"status":          c.Status,
	}
	if c.ReceivedFromSupplier.IsPositive() {
		updates["total_received_from_supplier"] = gorm.Expr("total_received_from_supplier + ?", c.ReceivedFromSupplier)
	}
	if c.ProductName != "" {
		updates["product_name"] = c.ProductName
	}
	if c.Supplier != "" {
		updates["last_supplier"] = c.Supplier
	}
	if c.GrnBatchId != "" {
		updates["grn_batch_id"] = c.GrnBatchId
	}
	if c.ReceivedDate != nil {
		updates["last_received_date"] = *c.ReceivedDate
	}
	if !c.Location.IsZero() {
		updates["location_zone"] = c.Location.Zone
		updates["location_rack"] = c.Location.Rack
		updates["location_bin"] = c.Location.Bin
	}
	if err := tx.WithContext(ctx).Model(&WarehouseStock{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
		return err
	}

	return appendMovement(ctx, tx, StockMovement{
		Ledger:          MovementLedgerWarehouse,
		ProductId:       c.ProductId,
		WarehouseName:   c.WarehouseName,
		Quantity:        c.Quantity,
		MovementType:    c.MovementType,
		ReferenceType:   c.ReferenceType,
		ReferenceNumber: c.ReferenceNumber,
	})
}

type warehouseDebit struct {
	ProductId     string
	WarehouseName string
	Quantity      decimal.Decimal
	// empty keeps the current status
	Status          StockStatus
	MovementType    MovementType
	ReferenceType   string
	ReferenceNumber string
}

// debitWarehouseStock subtracts Quantity in a single conditional UPDATE.
// A missing row or a short balance affects no rows and is reported as InsufficientStockError.
func debitWarehouseStock(ctx context.Context, tx *gorm.DB, d warehouseDebit) (*WarehouseStock, error) {
	updates := map[string]interface{}{
		"available_stock": gorm.Expr("available_stock - ?", d.Quantity),
	}
	if d.Status != "" {
		updates["status"] = d.Status
	}
	result := tx.WithContext(ctx).Model(&WarehouseStock{}).
		Where("product_id = ? AND warehouse_name = ? AND available_stock >= ?", d.ProductId, d.WarehouseName, d.Quantity).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		var available decimal.Decimal
		var row WarehouseStock
		if err := tx.WithContext(ctx).Where("product_id = ? AND warehouse_name = ?", d.ProductId, d.WarehouseName).Limit(1).Find(&row).Error; err == nil && row.ID != 0 {
			available = row.AvailableStock
		}
		return nil, utils.NewInsufficientStockError("Insufficient stock for product %s in warehouse %s: available %s, requested %s",
			d.ProductId, d.WarehouseName, available.String(), d.Quantity.String())
	}

	var row WarehouseStock
	if err := tx.WithContext(ctx).Where("product_id = ? AND warehouse_name = ?", d.ProductId, d.WarehouseName).First(&row).Error; err != nil {
		return nil, err
	}
	if err := appendMovement(ctx, tx, StockMovement{
		Ledger:          MovementLedgerWarehouse,
		ProductId:       d.ProductId,
		WarehouseName:   d.WarehouseName,
		Quantity:        d.Quantity.Neg(),
		MovementType:    d.MovementType,
		ReferenceType:   d.ReferenceType,
		ReferenceNumber: d.ReferenceNumber,
	}); err != nil {
		return nil, err
	}
	return &row, nil
}

func warehouseStockLockKey(productId string, warehouseName string) string {
	return utils.StockLockKey("warehouse", productId, warehouseName)
}

func GetWarehouseStock(ctx context.Context, productId string, warehouseName string) (*WarehouseStock, error) {
	return utils.FetchModelWhere[WarehouseStock](ctx, config.GetDB(), "WarehouseStock", productId+"@"+warehouseName,
		"product_id = ? AND warehouse_name = ?", []any{productId, warehouseName})
}

func ListWarehouseStocks(ctx context.Context, warehouseName string, productId string) ([]WarehouseStock, error) {
	filters := map[string]any{}
	if warehouseName != "" {
		filters["warehouse_name"] = warehouseName
	}
	if productId != "" {
		filters["product_id"] = productId
	}
	return utils.ListModels[WarehouseStock](ctx, config.GetDB(), filters)
}
