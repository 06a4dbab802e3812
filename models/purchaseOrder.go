package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
)

type PurchaseOrder struct {
	ID                   int                         `gorm:"primary_key" json:"id"`
	PoNumber             string                      `gorm:"size:64;not null;uniqueIndex" json:"poNumber"`
	SupplierName         string                      `gorm:"size:255;not null" json:"supplierName"`
	Items                []PurchaseOrderItem         `gorm:"foreignKey:PurchaseOrderId" json:"items"`
	TotalAmount          decimal.Decimal             `gorm:"type:decimal(20,4);default:0" json:"totalAmount"`
	DeliveryType         DeliveryType                `gorm:"size:30;not null" json:"deliveryType"`
	CustomerId           string                      `gorm:"size:64" json:"customerId,omitempty"`
	CustomerName         string                      `gorm:"size:255" json:"customerName,omitempty"`
	Kind                 PurchaseOrderKind           `gorm:"size:20;not null;default:'standard'" json:"kind"`
	Status               PurchaseOrderStatus         `gorm:"size:30;not null;index" json:"status"`
	TotalOrderedQuantity decimal.Decimal             `gorm:"type:decimal(20,4);default:0" json:"totalOrderedQuantity"`
	ReceivedQuantity     decimal.Decimal             `gorm:"type:decimal(20,4);default:0" json:"receivedQuantity"`
	PendingQuantity      decimal.Decimal             `gorm:"type:decimal(20,4);default:0" json:"pendingQuantity"`
	GrnLinks             datatypes.JSONSlice[string] `json:"grnLinks"`
	CreatedAt            time.Time                   `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt            time.Time                   `gorm:"autoUpdateTime" json:"updatedAt"`
}

type PurchaseOrderItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PurchaseOrderId int             `gorm:"index;not null" json:"purchaseOrderId"`
	ProductId       string          `gorm:"size:64;not null" json:"productId"`
	ProductName     string          `gorm:"size:255" json:"productName"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unitPrice"`
}

type NewPurchaseOrder struct {
	SupplierName string                 `json:"supplierName" binding:"required"`
	DeliveryType DeliveryType           `json:"deliveryType" binding:"required,oneof=to_warehouse direct_to_customer"`
	CustomerId   string                 `json:"customerId"`
	CustomerName string                 `json:"customerName"`
	Kind         PurchaseOrderKind      `json:"kind" binding:"omitempty,oneof=standard reference"`
	Items        []NewPurchaseOrderItem `json:"items" binding:"required,min=1,dive"`
}

type NewPurchaseOrderItem struct {
	ProductId   string          `json:"productId" binding:"required"`
	ProductName string          `json:"productName"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

func (input *NewPurchaseOrder) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.DeliveryType == DeliveryTypeDirectToCustomer && input.CustomerId == "" {
		return utils.NewValidationError("customerId is required for direct_to_customer delivery")
	}
	for _, item := range input.Items {
		if err := requirePositive("quantity of "+item.ProductId, item.Quantity); err != nil {
			return err
		}
		if err := requireNonNegative("unitPrice", item.ProductId, item.UnitPrice); err != nil {
			return err
		}
	}
	return nil
}

func (po *PurchaseOrder) IsReference() bool {
	return po.Kind == PurchaseOrderKindReference || po.Status == PurchaseOrderStatusReference
}

func (po *PurchaseOrder) orderedQuantityFor(productId string) (decimal.Decimal, bool) {
	total := decimal.Zero
	found := false
	for _, item := range po.Items {
		if item.ProductId == productId {
			total = total.Add(item.Quantity)
			found = true
		}
	}
	return total, found
}

func (po *PurchaseOrder) unitPriceFor(productId string) decimal.Decimal {
	for _, item := range po.Items {
		if item.ProductId == productId {
			return item.UnitPrice
		}
	}
	return decimal.Zero
}

func (po *PurchaseOrder) totalOrdered() decimal.Decimal {
	total := decimal.Zero
	for _, item := range po.Items {
		total = total.Add(item.Quantity)
	}
	return total
}

func CreatePurchaseOrder(ctx context.Context, input *NewPurchaseOrder) (*PurchaseOrder, error) {
	ctx, span := tracer.Start(ctx, "CreatePurchaseOrder")
	defer span.End()

	if err := input.validate(); err != nil {
		return nil, err
	}
	logger := config.GetLogger()

	kind := input.Kind
	if kind == "" {
		kind = PurchaseOrderKindStandard
	}
	status := PurchaseOrderStatusCreated
	if kind == PurchaseOrderKindReference {
		status = PurchaseOrderStatusReference
	}
	customerName := input.CustomerName
	if input.CustomerId != "" && customerName == "" {
		customerName = lookupCustomerName(ctx, input.CustomerId)
	}

	items := make([]PurchaseOrderItem, 0, len(input.Items))
	totalAmount := decimal.Zero
	totalQty := decimal.Zero
	for _, item := range input.Items {
		name := item.ProductName
		if name == "" {
			name = lookupProductName(ctx, item.ProductId)
		}
		items = append(items, PurchaseOrderItem{
			ProductId:   item.ProductId,
			ProductName: name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
		totalAmount = totalAmount.Add(item.Quantity.Mul(item.UnitPrice))
		totalQty = totalQty.Add(item.Quantity)
	}

	db := config.GetDB()
	tx := db.Begin()

	poNumber, err := nextDocumentNumber(ctx, tx, DocumentNumberPurchaseOrder)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	po := PurchaseOrder{
		PoNumber:             poNumber,
		SupplierName:         input.SupplierName,
		Items:                items,
		TotalAmount:          totalAmount,
		DeliveryType:         input.DeliveryType,
		CustomerId:           input.CustomerId,
		CustomerName:         customerName,
		Kind:                 kind,
		Status:               status,
		TotalOrderedQuantity: totalQty,
		ReceivedQuantity:     decimal.Zero,
		PendingQuantity:      totalQty,
		GrnLinks:             datatypes.JSONSlice[string]{},
	}
	if err := tx.WithContext(ctx).Create(&po).Error; err != nil {
		tx.Rollback()
		config.LogError(logger, "PurchaseOrder", "CreatePurchaseOrder", "Error creating purchase order", input, err)
		return nil, err
	}
	if err := recordLedgerEvent(ctx, tx, LedgerEventPurchaseOrderCreated, "PurchaseOrder", po.PoNumber, po); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "PurchaseOrder", "CreatePurchaseOrder", "Error committing purchase order", po.PoNumber, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("po.number", po.PoNumber))
	logger.WithFields(logrus.Fields{
		"field":     "CreatePurchaseOrder",
		"po_number": po.PoNumber,
		"kind":      po.Kind,
		"items":     len(po.Items),
	}).Info("purchase order created")
	return &po, nil
}

func GetPurchaseOrder(ctx context.Context, poNumber string) (*PurchaseOrder, error) {
	return utils.FetchModelWhere[PurchaseOrder](ctx, config.GetDB(), "PurchaseOrder", poNumber, "po_number = ?", []any{poNumber}, "Items")
}

func ListPurchaseOrders(ctx context.Context, status PurchaseOrderStatus) ([]PurchaseOrder, error) {
	filters := map[string]any{}
	if status != "" {
		filters["status"] = status
	}
	return utils.ListModels[PurchaseOrder](ctx, config.GetDB(), filters, "Items")
}
