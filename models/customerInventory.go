package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomerInventory is stock earmarked for one customer and not yet invoiced.
type CustomerInventory struct {
	ID               int             `gorm:"primary_key" json:"id"`
	ProductId        string          `gorm:"size:64;not null;index:uniq_custinv_product_customer,unique" json:"productId"`
	CustomerId       string          `gorm:"size:64;not null;index:uniq_custinv_product_customer,unique" json:"customerId"`
	ProductName      string          `gorm:"size:255" json:"productName"`
	CustomerName     string          `gorm:"size:255" json:"customerName"`
	Quantity         decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity"`
	InvoicedQuantity decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"invoicedQuantity"`
	Price            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Notes            string          `gorm:"type:text" json:"notes"`
	LastUpdated      time.Time       `json:"lastUpdated"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (CustomerInventory) TableName() string {
	return "customer_inventories"
}

func (ci CustomerInventory) AvailableToInvoice() decimal.Decimal {
	return ci.Quantity.Sub(ci.InvoicedQuantity)
}

// MarshalJSON adds the derived availableToInvoice to the stored columns.
func (ci CustomerInventory) MarshalJSON() ([]byte, error) {
	type columns CustomerInventory
	return json.Marshal(struct {
		columns
		AvailableToInvoice decimal.Decimal `json:"availableToInvoice"`
	}{columns(ci), ci.AvailableToInvoice()})
}

type customerCredit struct {
	ProductId    string
	ProductName  string
	CustomerId   string
	CustomerName string
	Quantity     decimal.Decimal
	// seeds price on a new row only
	Price           decimal.Decimal
	Notes           string
	MovementType    MovementType
	ReferenceType   string
	ReferenceNumber string
}

// creditCustomerInventory upserts the (product, customer) row and adds Quantity to it.
func creditCustomerInventory(ctx context.Context, tx *gorm.DB, c customerCredit) error {
	now := nowFunc()
	row := CustomerInventory{
		ProductId:    c.ProductId,
		CustomerId:   c.CustomerId,
		ProductName:  c.ProductName,
		CustomerName: c.CustomerName,
		Price:        c.Price,
		Notes:        c.Notes,
		LastUpdated:  now,
	}
	if err := firstOrCreateForUpdate(tx.WithContext(ctx), &row, "product_id = ? AND customer_id = ?", c.ProductId, c.CustomerId); err != nil {
		return err
	}
	updates := map[string]interface{}{
		"quantity":     gorm.Expr("quantity + ?", c.Quantity),
		"last_updated": now,
	}
	if row.ProductName == "" && c.ProductName != "" {
		updates["product_name"] = c.ProductName
	}
	if row.CustomerName == "" && c.CustomerName != "" {
		updates["customer_name"] = c.CustomerName
	}
	if err := tx.WithContext(ctx).Model(&CustomerInventory{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
		return err
	}
	return appendCustomerMovement(ctx, tx, c.ProductId, c.CustomerId, c.Quantity, c.MovementType, c.ReferenceType, c.ReferenceNumber)
}

// incrementCustomerInventoryIfExists adds quantity only to an existing row and reports whether it did.
func incrementCustomerInventoryIfExists(ctx context.Context, tx *gorm.DB, productId string, customerId string, quantity decimal.Decimal, movementType MovementType, referenceType string, referenceNumber string) (bool, error) {
	result := tx.WithContext(ctx).Model(&CustomerInventory{}).
		Where("product_id = ? AND customer_id = ?", productId, customerId).
		Updates(map[string]interface{}{
			"quantity":     gorm.Expr("quantity + ?", quantity),
			"last_updated": nowFunc(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	return true, appendCustomerMovement(ctx, tx, productId, customerId, quantity, movementType, referenceType, referenceNumber)
}

// decrementCustomerInventory lowers quantity by up to the requested amount, never below
// invoicedQuantity (and so never below zero). A missing row is not an error.
func decrementCustomerInventory(ctx context.Context, tx *gorm.DB, productId string, customerId string, quantity decimal.Decimal, movementType MovementType, referenceType string, referenceNumber string) error {
	var row CustomerInventory
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND customer_id = ?", productId, customerId).
		Limit(1).Find(&row).Error
	if err != nil {
		return err
	}
	if row.ID == 0 {
		return nil
	}
	floor := maxDecimal(row.InvoicedQuantity, decimal.Zero)
	newQuantity := maxDecimal(row.Quantity.Sub(quantity), floor)
	delta := newQuantity.Sub(row.Quantity)
	if delta.IsZero() {
		return nil
	}
	result := tx.WithContext(ctx).Model(&CustomerInventory{}).
		Where("id = ? AND quantity = ?", row.ID, row.Quantity).
		Updates(map[string]interface{}{
			"quantity":     newQuantity,
			"last_updated": nowFunc(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.NewConflictError("customer inventory for product %s and customer %s changed concurrently, retry", productId, customerId)
	}
	return appendCustomerMovement(ctx, tx, productId, customerId, delta, movementType, referenceType, referenceNumber)
}

func appendCustomerMovement(ctx context.Context, tx *gorm.DB, productId string, customerId string, quantity decimal.Decimal, movementType MovementType, referenceType string, referenceNumber string) error {
	return appendMovement(ctx, tx, StockMovement{
		Ledger:          MovementLedgerCustomer,
		ProductId:       productId,
		CustomerId:      customerId,
		Quantity:        quantity,
		MovementType:    movementType,
		ReferenceType:   referenceType,
		ReferenceNumber: referenceNumber,
	})
}

func customerInventoryLockKey(productId string, customerId string) string {
	return utils.StockLockKey("customer", productId, customerId)
}

func GetCustomerInventory(ctx context.Context, productId string, customerId string) (*CustomerInventory, error) {
	return utils.FetchModelWhere[CustomerInventory](ctx, config.GetDB(), "CustomerInventory", productId+"@"+customerId,
		"product_id = ? AND customer_id = ?", []any{productId, customerId})
}

func ListCustomerInventories(ctx context.Context, customerId string) ([]CustomerInventory, error) {
	filters := map[string]any{}
	if customerId != "" {
		filters["customer_id"] = customerId
	}
	return utils.ListModels[CustomerInventory](ctx, config.GetDB(), filters)
}
