package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/utils"
	"github.com/shopspring/decimal"
)

// GRN is the append-only record of goods accepted into custody.
// Only Status and TransferDetails change after creation.
type GRN struct {
	ID              int             `gorm:"primary_key" json:"id"`
	GrnNumber       string          `gorm:"size:64;not null;uniqueIndex" json:"grnNumber"`
	PoNumber        string          `gorm:"size:64;index" json:"poNumber,omitempty"`
	InwardNumber    string          `gorm:"size:64;index" json:"inwardNumber,omitempty"`
	Kind            GRNKind         `gorm:"size:20;not null" json:"kind"`
	SupplierName    string          `gorm:"size:255" json:"supplierName"`
	WarehouseName   string          `gorm:"size:255;not null" json:"warehouseName"`
	Location        Location        `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	Items           []GRNItem       `gorm:"foreignKey:GrnId" json:"items"`
	Status          StockStatus     `gorm:"size:20;not null;index" json:"status"`
	CustomerId      string          `gorm:"size:64" json:"customerId,omitempty"`
	CustomerName    string          `gorm:"size:255" json:"customerName,omitempty"`
	ReceivedDate    time.Time       `json:"receivedDate"`
	TransferDetails TransferDetails `gorm:"embedded;embeddedPrefix:transfer_" json:"transferDetails"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (GRN) TableName() string {
	return "grns"
}

type GRNItem struct {
	ID                 int                `gorm:"primary_key" json:"id"`
	GrnId              int                `gorm:"index;not null" json:"grnId"`
	ProductId          string             `gorm:"size:64;not null" json:"productId"`
	ProductName        string             `gorm:"size:255" json:"productName"`
	OrderedQuantity    decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"orderedQuantity"`
	ReceivedQuantity   decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"receivedQuantity"`
	AcceptedQuantity   decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"acceptedQuantity"`
	DamagedQuantity    decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"damagedQuantity"`
	LostQuantity       decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"lostQuantity"`
	CustomerAllocation CustomerAllocation `gorm:"embedded;embeddedPrefix:allocation_" json:"customerAllocation"`
	WarehouseQuantity  decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"warehouseQuantity"`
	UnitPrice          decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"unitPrice"`
}

func (GRNItem) TableName() string {
	return "grn_items"
}

type CustomerAllocation struct {
	CustomerId   string          `gorm:"size:64" json:"customerId,omitempty"`
	CustomerName string          `gorm:"size:255" json:"customerName,omitempty"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
}

// TransferDetails is empty until a transfer is initiated against the GRN.
type TransferDetails struct {
	ProductId     string          `gorm:"size:64" json:"productId,omitempty"`
	FromWarehouse string          `gorm:"size:255" json:"fromWarehouse,omitempty"`
	ToWarehouse   string          `gorm:"size:255" json:"toWarehouse,omitempty"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	Status        TransferStatus  `gorm:"size:20" json:"status,omitempty"`
	// false when the destination waits for completion to be credited
	CreditedAtInitiation bool       `json:"creditedAtInitiation"`
	InitiatedAt          *time.Time `json:"initiatedAt,omitempty"`
	CompletedAt          *time.Time `json:"completedAt,omitempty"`
}

func (t TransferDetails) Exists() bool {
	return t.Status != TransferStatusNone
}

func (g *GRN) itemFor(productId string) (*GRNItem, bool) {
	for i := range g.Items {
		if g.Items[i].ProductId == productId {
			return &g.Items[i], true
		}
	}
	return nil, false
}

func GetGRN(ctx context.Context, grnNumber string) (*GRN, error) {
	return utils.FetchModelWhere[GRN](ctx, config.GetDB(), "GRN", grnNumber, "grn_number = ?", []any{grnNumber}, "Items")
}

func ListGRNs(ctx context.Context, poNumber string, status StockStatus) ([]GRN, error) {
	filters := map[string]any{}
	if poNumber != "" {
		filters["po_number"] = poNumber
	}
	if status != "" {
		filters["status"] = status
	}
	return utils.ListModels[GRN](ctx, config.GetDB(), filters, "Items")
}
