package models

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutwardEntry is stock handed to a customer as a sale, sample or replacement.
type OutwardEntry struct {
	ID              int             `gorm:"primary_key" json:"id"`
	ProductId       string          `gorm:"size:64;not null;index" json:"productId"`
	ProductName     string          `gorm:"size:255" json:"productName"`
	CustomerId      string          `gorm:"size:64;not null;index" json:"customerId"`
	CustomerName    string          `gorm:"size:255" json:"customerName"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	WarehouseName   string          `gorm:"size:255;not null" json:"warehouseName"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unitPrice"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"totalAmount"`
	OutwardType     OutwardType     `gorm:"size:30;not null;index" json:"outwardType"`
	ReferenceNumber string          `gorm:"size:100" json:"referenceNumber"`
	Notes           string          `gorm:"type:text" json:"notes"`
	ConvertedToSale bool            `gorm:"not null;default:false" json:"convertedToSale"`
	ConvertedAt     *time.Time      `json:"convertedAt"`
	Date            time.Time       `json:"date"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewOutwardEntry struct {
	ProductId       string          `json:"productId" binding:"required"`
	ProductName     string          `json:"productName"`
	CustomerId      string          `json:"customerId" binding:"required"`
	CustomerName    string          `json:"customerName"`
	Quantity        decimal.Decimal `json:"quantity"`
	WarehouseName   string          `json:"warehouseName" binding:"required"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	OutwardType     OutwardType     `json:"outwardType" binding:"required,oneof=offline_direct sample return_replacement"`
	ReferenceNumber string          `json:"referenceNumber"`
	Notes           string          `json:"notes"`
	Date            *time.Time      `json:"date"`
}

func (e OutwardEntry) reference() string {
	return strconv.Itoa(e.ID)
}

// IssueOutward deducts warehouse stock and records the hand-over. An existing
// CustomerInventory row for the pair is incremented; none is created.
func IssueOutward(ctx context.Context, input *NewOutwardEntry) (*OutwardEntry, error) {
	ctx, span := tracer.Start(ctx, "IssueOutward")
	defer span.End()

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := requirePositive("quantity", input.Quantity); err != nil {
		return nil, err
	}
	if err := requireNonNegative("unitPrice", input.ProductId, input.UnitPrice); err != nil {
		return nil, err
	}
	customerName := input.CustomerName
	if customerName == "" {
		customerName = lookupCustomerName(ctx, input.CustomerId)
	}
	productName := input.ProductName
	if productName == "" {
		if stock, err := GetWarehouseStock(ctx, input.ProductId, input.WarehouseName); err == nil {
			productName = stock.ProductName
		}
	}
	date := nowFunc()
	if input.Date != nil {
		date = *input.Date
	}

	unlock, err := utils.StockLock(ctx, "OutwardEntry", "IssueOutward",
		warehouseStockLockKey(input.ProductId, input.WarehouseName),
		customerInventoryLockKey(input.ProductId, input.CustomerId))
	if err != nil {
		return nil, err
	}
	defer unlock()

	logger := config.GetLogger()
	db := config.GetDB()
	tx := db.Begin()
	fail := func(err error) (*OutwardEntry, error) {
		tx.Rollback()
		return nil, err
	}

	if ref, ok, err := findIdempotentReference(ctx, tx, IdempotencyScopeOutward); err != nil {
		return fail(err)
	} else if ok {
		tx.Rollback()
		return getOutwardEntryByReference(ctx, ref)
	}

	entry := OutwardEntry{
		ProductId:       input.ProductId,
		ProductName:     productName,
		CustomerId:      input.CustomerId,
		CustomerName:    customerName,
		Quantity:        input.Quantity,
		WarehouseName:   input.WarehouseName,
		UnitPrice:       input.UnitPrice,
		TotalAmount:     input.UnitPrice.Mul(input.Quantity),
		OutwardType:     input.OutwardType,
		ReferenceNumber: input.ReferenceNumber,
		Notes:           input.Notes,
		Date:            date,
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		config.LogError(logger, "OutwardEntry", "IssueOutward", "Error creating outward entry", input, err)
		return fail(err)
	}
	if _, err := debitWarehouseStock(ctx, tx, warehouseDebit{
		ProductId:       entry.ProductId,
		WarehouseName:   entry.WarehouseName,
		Quantity:        entry.Quantity,
		MovementType:    MovementTypeOutwardIssue,
		ReferenceType:   "OutwardEntry",
		ReferenceNumber: entry.reference(),
	}); err != nil {
		return fail(err)
	}
	if _, err := incrementCustomerInventoryIfExists(ctx, tx, entry.ProductId, entry.CustomerId, entry.Quantity,
		MovementTypeOutwardIssue, "OutwardEntry", entry.reference()); err != nil {
		return fail(err)
	}
	if err := recordLedgerEvent(ctx, tx, LedgerEventOutwardIssued, "OutwardEntry", entry.reference(), entry); err != nil {
		return fail(err)
	}
	if err := rememberIdempotentReference(ctx, tx, IdempotencyScopeOutward, entry.reference()); err != nil {
		tx.Rollback()
		if isDuplicateKeyErr(err) {
			if ref, ok := lookupIdempotentReference(ctx, db, IdempotencyScopeOutward); ok {
				return getOutwardEntryByReference(ctx, ref)
			}
		}
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "OutwardEntry", "IssueOutward", "Error committing outward entry", input, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("outward.id", entry.ID))
	logger.WithFields(logrus.Fields{
		"field":          "IssueOutward",
		"outward_id":     entry.ID,
		"product_id":     entry.ProductId,
		"warehouse_name": entry.WarehouseName,
		"quantity":       entry.Quantity.String(),
		"outward_type":   entry.OutwardType,
	}).Info("outward issued")
	return &entry, nil
}

func lockOutwardEntry(ctx context.Context, tx *gorm.DB, id int) (*OutwardEntry, error) {
	var entry OutwardEntry
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("OutwardEntry", strconv.Itoa(id))
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ReverseOutward puts the quantity back into the warehouse, lowers the customer's
// allocation (never below what is already invoiced) and deletes the entry.
func ReverseOutward(ctx context.Context, id int) (*OutwardEntry, error) {
	ctx, span := tracer.Start(ctx, "ReverseOutward")
	defer span.End()
	span.SetAttributes(attribute.Int("outward.id", id))

	current, err := GetOutwardEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	unlock, err := utils.StockLock(ctx, "OutwardEntry", "ReverseOutward",
		warehouseStockLockKey(current.ProductId, current.WarehouseName),
		customerInventoryLockKey(current.ProductId, current.CustomerId))
	if err != nil {
		return nil, err
	}
	defer unlock()

	logger := config.GetLogger()
	db := config.GetDB()
	tx := db.Begin()
	fail := func(err error) (*OutwardEntry, error) {
		tx.Rollback()
		return nil, err
	}

	entry, err := lockOutwardEntry(ctx, tx, id)
	if err != nil {
		return fail(err)
	}
	if err := creditWarehouseStock(ctx, tx, warehouseCredit{
		ProductId:       entry.ProductId,
		ProductName:     entry.ProductName,
		WarehouseName:   entry.WarehouseName,
		Quantity:        entry.Quantity,
		MovementType:    MovementTypeOutwardReversal,
		ReferenceType:   "OutwardEntry",
		ReferenceNumber: entry.reference(),
	}); err != nil {
		return fail(err)
	}
	if err := decrementCustomerInventory(ctx, tx, entry.ProductId, entry.CustomerId, entry.Quantity,
		MovementTypeOutwardReversal, "OutwardEntry", entry.reference()); err != nil {
		return fail(err)
	}
	if err := tx.WithContext(ctx).Delete(&OutwardEntry{}, entry.ID).Error; err != nil {
		config.LogError(logger, "OutwardEntry", "ReverseOutward", "Error deleting outward entry", id, err)
		return fail(err)
	}
	if err := recordLedgerEvent(ctx, tx, LedgerEventOutwardReversed, "OutwardEntry", entry.reference(), entry); err != nil {
		return fail(err)
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "OutwardEntry", "ReverseOutward", "Error committing reversal", id, err)
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"field":      "ReverseOutward",
		"outward_id": id,
		"quantity":   entry.Quantity.String(),
	}).Info("outward reversed")
	return entry, nil
}

// ConvertSampleToSale prices a sample and allocates its quantity to the customer.
func ConvertSampleToSale(ctx context.Context, id int, unitPrice decimal.Decimal) (*OutwardEntry, error) {
	ctx, span := tracer.Start(ctx, "ConvertSampleToSale")
	defer span.End()
	span.SetAttributes(attribute.Int("outward.id", id))

	if !unitPrice.IsPositive() {
		return nil, utils.NewValidationError("unitPrice must be greater than zero")
	}
	current, err := GetOutwardEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	unlock, err := utils.StockLock(ctx, "OutwardEntry", "ConvertSampleToSale",
		customerInventoryLockKey(current.ProductId, current.CustomerId))
	if err != nil {
		return nil, err
	}
	defer unlock()

	logger := config.GetLogger()
	db := config.GetDB()
	tx := db.Begin()
	fail := func(err error) (*OutwardEntry, error) {
		tx.Rollback()
		return nil, err
	}

	entry, err := lockOutwardEntry(ctx, tx, id)
	if err != nil {
		return fail(err)
	}
	if entry.ConvertedToSale {
		return fail(utils.NewConflictError("outward entry %d was already converted to a sale", id))
	}
	nextType, err := entry.OutwardType.Next(OutwardEventConvertToSale)
	if err != nil {
		return fail(err)
	}

	now := nowFunc()
	entry.OutwardType = nextType
	entry.UnitPrice = unitPrice
	entry.TotalAmount = unitPrice.Mul(entry.Quantity)
	entry.ConvertedToSale = true
	entry.ConvertedAt = &now
	result := tx.WithContext(ctx).Model(&OutwardEntry{}).
		Where("id = ? AND converted_to_sale = ?", entry.ID, false).
		Updates(map[string]interface{}{
			"outward_type":      entry.OutwardType,
			"unit_price":        entry.UnitPrice,
			"total_amount":      entry.TotalAmount,
			"converted_to_sale": true,
			"converted_at":      now,
		})
	if result.Error != nil {
		return fail(result.Error)
	}
	if result.RowsAffected == 0 {
		return fail(utils.NewConflictError("outward entry %d was already converted to a sale", id))
	}

	if err := creditCustomerInventory(ctx, tx, customerCredit{
		ProductId:       entry.ProductId,
		ProductName:     entry.ProductName,
		CustomerId:      entry.CustomerId,
		CustomerName:    entry.CustomerName,
		Quantity:        entry.Quantity,
		Price:           unitPrice,
		MovementType:    MovementTypeSampleConversion,
		ReferenceType:   "OutwardEntry",
		ReferenceNumber: entry.reference(),
	}); err != nil {
		return fail(err)
	}
	if err := recordLedgerEvent(ctx, tx, LedgerEventSampleConverted, "OutwardEntry", entry.reference(), entry); err != nil {
		return fail(err)
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "OutwardEntry", "ConvertSampleToSale", "Error committing conversion", id, err)
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"field":        "ConvertSampleToSale",
		"outward_id":   id,
		"total_amount": entry.TotalAmount.String(),
	}).Info("sample converted to sale")
	return entry, nil
}

func GetOutwardEntry(ctx context.Context, id int) (*OutwardEntry, error) {
	return utils.FetchModelWhere[OutwardEntry](ctx, config.GetDB(), "OutwardEntry", strconv.Itoa(id), "id = ?", []any{id})
}

func getOutwardEntryByReference(ctx context.Context, ref string) (*OutwardEntry, error) {
	id, err := strconv.Atoi(ref)
	if err != nil {
		return nil, utils.NewNotFoundError("OutwardEntry", ref)
	}
	return GetOutwardEntry(ctx, id)
}

func ListOutwardEntries(ctx context.Context, customerId string) ([]OutwardEntry, error) {
	filters := map[string]any{}
	if customerId != "" {
		filters["customer_id"] = customerId
	}
	return utils.ListModels[OutwardEntry](ctx, config.GetDB(), filters)
}
