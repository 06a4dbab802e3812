package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// InwardEntry is the raw receipt captured at the dock before a GRN is posted.
type InwardEntry struct {
	ID           int                         `gorm:"primary_key" json:"id"`
	InwardNumber string                      `gorm:"size:64;not null;uniqueIndex" json:"inwardNumber"`
	PoNumber     string                      `gorm:"size:64;index" json:"poNumber,omitempty"`
	Kind         InwardKind                  `gorm:"size:20;not null" json:"kind"`
	SupplierName string                      `gorm:"size:255" json:"supplierName"`
	ReceivedDate time.Time                   `json:"receivedDate"`
	Items        []InwardEntryItem           `gorm:"foreignKey:InwardEntryId" json:"items"`
	Status       InwardStatus                `gorm:"size:20;not null;index" json:"status"`
	GrnLinks     datatypes.JSONSlice[string] `json:"grnLinks"`
	CreatedAt    time.Time                   `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time                   `gorm:"autoUpdateTime" json:"updatedAt"`
}

type InwardEntryItem struct {
	ID               int             `gorm:"primary_key" json:"id"`
	InwardEntryId    int             `gorm:"index;not null" json:"inwardEntryId"`
	ProductId        string          `gorm:"size:64;not null" json:"productId"`
	ProductName      string          `gorm:"size:255" json:"productName"`
	OrderedQuantity  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"orderedQuantity"`
	ReceivedQuantity decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"receivedQuantity"`
	DamagedQuantity  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"damagedQuantity"`
	LostQuantity     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"lostQuantity"`
	AcceptedQuantity decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"acceptedQuantity"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unitPrice"`
}

type NewInwardEntry struct {
	PoNumber     string           `json:"poNumber"`
	SupplierName string           `json:"supplierName"`
	ReceivedDate *time.Time       `json:"receivedDate"`
	Items        []NewReceiptItem `json:"items" binding:"required,min=1,dive"`
}

func (item InwardEntryItem) receiptItem() NewReceiptItem {
	return NewReceiptItem{
		ProductId:        item.ProductId,
		ProductName:      item.ProductName,
		OrderedQuantity:  item.OrderedQuantity,
		ReceivedQuantity: item.ReceivedQuantity,
		DamagedQuantity:  item.DamagedQuantity,
		LostQuantity:     item.LostQuantity,
		UnitPrice:        item.UnitPrice,
	}
}

func CreateInwardEntry(ctx context.Context, input *NewInwardEntry) (*InwardEntry, error) {
	ctx, span := tracer.Start(ctx, "CreateInwardEntry")
	defer span.End()

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	logger := config.GetLogger()

	kind := InwardKindDirectInward
	supplier := input.SupplierName
	var po *PurchaseOrder
	if input.PoNumber != "" {
		var err error
		po, err = GetPurchaseOrder(ctx, input.PoNumber)
		if err != nil {
			return nil, err
		}
		kind = InwardKindPOLinked
		if supplier == "" {
			supplier = po.SupplierName
		}
	}
	if supplier == "" {
		return nil, utils.NewValidationError("supplierName is required")
	}

	items := make([]InwardEntryItem, 0, len(input.Items))
	for _, in := range input.Items {
		ordered := in.OrderedQuantity
		if po != nil {
			if q, ok := po.orderedQuantityFor(in.ProductId); ok {
				ordered = q
			}
		}
		d, err := ComputeDisposition(in, decimal.Zero)
		if err != nil {
			return nil, err
		}
		name := in.ProductName
		if name == "" {
			name = lookupProductName(ctx, in.ProductId)
		}
		items = append(items, InwardEntryItem{
			ProductId:        in.ProductId,
			ProductName:      name,
			OrderedQuantity:  ordered,
			ReceivedQuantity: in.ReceivedQuantity,
			DamagedQuantity:  in.DamagedQuantity,
			LostQuantity:     in.LostQuantity,
			AcceptedQuantity: d.AcceptedQuantity,
			UnitPrice:        in.UnitPrice,
		})
	}

	receivedDate := nowFunc()
	if input.ReceivedDate != nil {
		receivedDate = *input.ReceivedDate
	}

	db := config.GetDB()
	tx := db.Begin()

	number, err := nextDocumentNumber(ctx, tx, DocumentNumberInward)
	if err != nil {
		tx.Rollback()
		config.LogError(logger, "InwardEntry", "CreateInwardEntry", "Error issuing inward number", input, err)
		return nil, err
	}
	entry := InwardEntry{
		InwardNumber: number,
		PoNumber:     input.PoNumber,
		Kind:         kind,
		SupplierName: supplier,
		ReceivedDate: receivedDate,
		Items:        items,
		Status:       InwardStatusPendingGRN,
		GrnLinks:     datatypes.JSONSlice[string]{},
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		tx.Rollback()
		config.LogError(logger, "InwardEntry", "CreateInwardEntry", "Error creating inward entry", input, err)
		return nil, err
	}
	if err := recordLedgerEvent(ctx, tx, LedgerEventInwardCreated, "InwardEntry", entry.InwardNumber, entry); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"field":         "CreateInwardEntry",
		"inward_number": entry.InwardNumber,
		"po_number":     entry.PoNumber,
	}).Info("inward entry created")
	return &entry, nil
}

func GetInwardEntry(ctx context.Context, inwardNumber string) (*InwardEntry, error) {
	return utils.FetchModelWhere[InwardEntry](ctx, config.GetDB(), "InwardEntry", inwardNumber, "inward_number = ?", []any{inwardNumber}, "Items")
}

func ListInwardEntries(ctx context.Context, status InwardStatus) ([]InwardEntry, error) {
	filters := map[string]any{}
	if status != "" {
		filters["status"] = status
	}
	return utils.ListModels[InwardEntry](ctx, config.GetDB(), filters, "Items")
}
