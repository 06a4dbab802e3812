package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MovementLedger string

const (
	MovementLedgerWarehouse MovementLedger = "WAREHOUSE"
	MovementLedgerCustomer  MovementLedger = "CUSTOMER"
)

type MovementType string

const (
	MovementTypeGRNReceipt         MovementType = "GRN_RECEIPT"
	MovementTypeCustomerAllocation MovementType = "CUSTOMER_ALLOCATION"
	MovementTypeTransferOut        MovementType = "TRANSFER_OUT"
	MovementTypeTransferIn         MovementType = "TRANSFER_IN"
	MovementTypeAdjustment         MovementType = "ADJUSTMENT"
	MovementTypeWaste              MovementType = "WASTE"
	MovementTypeOutwardIssue       MovementType = "OUTWARD_ISSUE"
	MovementTypeOutwardReversal    MovementType = "OUTWARD_REVERSAL"
	MovementTypeSampleConversion   MovementType = "SAMPLE_CONVERSION"
	MovementTypeRebuild            MovementType = "REBUILD"
)

// StockMovement is one signed change to a WarehouseStock or CustomerInventory row.
// The sum of movements per key is the projected quantity.
type StockMovement struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Ledger          MovementLedger  `gorm:"size:20;not null;index:idx_movement_key,priority:1" json:"ledger"`
	ProductId       string          `gorm:"size:64;not null;index:idx_movement_key,priority:2" json:"productId"`
	WarehouseName   string          `gorm:"size:255;index:idx_movement_key,priority:3" json:"warehouseName,omitempty"`
	CustomerId      string          `gorm:"size:64;index:idx_movement_key,priority:4" json:"customerId,omitempty"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	MovementType    MovementType    `gorm:"size:30;not null;index" json:"movementType"`
	ReferenceType   string          `gorm:"size:40" json:"referenceType"`
	ReferenceNumber string          `gorm:"size:64;index" json:"referenceNumber"`
	CorrelationId   string          `gorm:"size:64" json:"correlationId"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"createdAt"`
}

func appendMovement(ctx context.Context, tx *gorm.DB, m StockMovement) error {
	if m.Quantity.IsZero() {
		return nil
	}
	if m.CorrelationId == "" {
		m.CorrelationId, _ = utils.GetCorrelationIdFromContext(ctx)
	}
	return tx.WithContext(ctx).Create(&m).Error
}

func ListStockMovements(ctx context.Context, ledger MovementLedger, productId string) ([]StockMovement, error) {
	filters := map[string]any{}
	if ledger != "" {
		filters["ledger"] = ledger
	}
	if productId != "" {
		filters["product_id"] = productId
	}
	return utils.ListModels[StockMovement](ctx, config.GetDB(), filters)
}
