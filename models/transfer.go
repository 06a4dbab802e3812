package models

import (
	"context"
	"errors"

	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NewTransfer struct {
	// defaults to the only product on the GRN
	ProductId string `json:"productId"`
	// defaults to the GRN's warehouse
	FromWarehouse string          `json:"fromWarehouse"`
	ToWarehouse   string          `json:"toWarehouse" binding:"required"`
	Quantity      decimal.Decimal `json:"quantity"`
}

func (input *NewTransfer) resolve(grn *GRN) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := requirePositive("quantity", input.Quantity); err != nil {
		return err
	}
	if input.FromWarehouse == "" {
		input.FromWarehouse = grn.WarehouseName
	}
	if input.FromWarehouse == input.ToWarehouse {
		return utils.NewValidationError("source and destination warehouse must differ")
	}
	if input.ProductId == "" {
		if len(grn.Items) != 1 {
			return utils.NewValidationError("productId is required for a GRN with %d items", len(grn.Items))
		}
		input.ProductId = grn.Items[0].ProductId
	}
	if _, ok := grn.itemFor(input.ProductId); !ok {
		return utils.NewValidationError("product %s is not on GRN %s", input.ProductId, grn.GrnNumber)
	}
	return nil
}

func lockGRN(ctx context.Context, tx *gorm.DB, grnNumber string) (*GRN, error) {
	var grn GRN
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items").Where("grn_number = ?", grnNumber).First(&grn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("GRN", grnNumber)
	}
	if err != nil {
		return nil, err
	}
	return &grn, nil
}

// InitiateTransfer moves quantity out of the source warehouse and records the
// transfer on the GRN. The destination is credited now unless
// TRANSFER_CREDIT_ON_COMPLETE defers it to CompleteTransfer.
func InitiateTransfer(ctx context.Context, grnNumber string, input *NewTransfer) (*GRN, error) {
	ctx, span := tracer.Start(ctx, "InitiateTransfer")
	defer span.End()
	span.SetAttributes(attribute.String("grn.number", grnNumber))

	current, err := GetGRN(ctx, grnNumber)
	if err != nil {
		return nil, err
	}
	if err := input.resolve(current); err != nil {
		return nil, err
	}
	item, _ := current.itemFor(input.ProductId)
	creditNow := !config.TransferCreditOnComplete()

	unlock, err := utils.StockLock(ctx, "Transfer", "InitiateTransfer",
		warehouseStockLockKey(input.ProductId, input.FromWarehouse),
		warehouseStockLockKey(input.ProductId, input.ToWarehouse))
	if err != nil {
		return nil, err
	}
	defer unlock()

	logger := config.GetLogger()
	db := config.GetDB()
	tx := db.Begin()
	fail := func(err error) (*GRN, error) {
		tx.Rollback()
		return nil, err
	}

	if ref, ok, err := findIdempotentReference(ctx, tx, IdempotencyScopeTransfer); err != nil {
		return fail(err)
	} else if ok {
		tx.Rollback()
		return GetGRN(ctx, ref)
	}

	grn, err := lockGRN(ctx, tx, grnNumber)
	if err != nil {
		return fail(err)
	}
	transferStatus, err := grn.TransferDetails.Status.Next(TransferEventInitiate)
	if err != nil {
		return fail(err)
	}
	grnStatus, err := grn.Status.NextForGRN(GRNEventTransferInitiated)
	if err != nil {
		return fail(err)
	}

	if _, err := debitWarehouseStock(ctx, tx, warehouseDebit{
		ProductId:       input.ProductId,
		WarehouseName:   input.FromWarehouse,
		Quantity:        input.Quantity,
		Status:          StockStatusInTransit,
		MovementType:    MovementTypeTransferOut,
		ReferenceType:   "GRN",
		ReferenceNumber: grn.GrnNumber,
	}); err != nil {
		return fail(err)
	}

	now := nowFunc()
	destination := warehouseCredit{
		ProductId:       input.ProductId,
		ProductName:     item.ProductName,
		WarehouseName:   input.ToWarehouse,
		Quantity:        decimal.Zero,
		GrnBatchId:      grn.GrnNumber,
		Status:          StockStatusInTransit,
		MovementType:    MovementTypeTransferIn,
		ReferenceType:   "GRN",
		ReferenceNumber: grn.GrnNumber,
	}
	if creditNow {
		destination.Quantity = input.Quantity
		destination.Status = StockStatusInWarehouse
		destination.ReceivedDate = &now
	}
	if err := creditWarehouseStock(ctx, tx, destination); err != nil {
		return fail(err)
	}

	grn.Status = grnStatus
	grn.TransferDetails = TransferDetails{
		ProductId:            input.ProductId,
		FromWarehouse:        input.FromWarehouse,
		ToWarehouse:          input.ToWarehouse,
		Quantity:             input.Quantity,
		Status:               transferStatus,
		CreditedAtInitiation: creditNow,
		InitiatedAt:          &now,
	}
	if err := saveTransferState(ctx, tx, grn); err != nil {
		return fail(err)
	}
	if err := recordLedgerEvent(ctx, tx, LedgerEventTransferInitiated, "GRN", grn.GrnNumber, grn.TransferDetails); err != nil {
		return fail(err)
	}
	if err := rememberIdempotentReference(ctx, tx, IdempotencyScopeTransfer, grn.GrnNumber); err != nil {
		tx.Rollback()
		if isDuplicateKeyErr(err) {
			if ref, ok := lookupIdempotentReference(ctx, db, IdempotencyScopeTransfer); ok {
				return GetGRN(ctx, ref)
			}
		}
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "Transfer", "InitiateTransfer", "Error committing transfer", grnNumber, err)
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"field":          "InitiateTransfer",
		"grn_number":     grnNumber,
		"product_id":     input.ProductId,
		"from":           input.FromWarehouse,
		"to":             input.ToWarehouse,
		"quantity":       input.Quantity.String(),
		"credited_early": creditNow,
	}).Info("transfer initiated")
	return GetGRN(ctx, grnNumber)
}

// CompleteTransfer closes an in-transit transfer. Quantity moves only if the
// destination was not already credited at initiation.
func CompleteTransfer(ctx context.Context, grnNumber string) (*GRN, error) {
	ctx, span := tracer.Start(ctx, "CompleteTransfer")
	defer span.End()
	span.SetAttributes(attribute.String("grn.number", grnNumber))

	current, err := GetGRN(ctx, grnNumber)
	if err != nil {
		return nil, err
	}
	if !current.TransferDetails.Exists() {
		return nil, utils.NewNotFoundError("Transfer for GRN", grnNumber)
	}
	td := current.TransferDetails
	unlock, err := utils.StockLock(ctx, "Transfer", "CompleteTransfer",
		warehouseStockLockKey(td.ProductId, td.FromWarehouse),
		warehouseStockLockKey(td.ProductId, td.ToWarehouse))
	if err != nil {
		return nil, err
	}
	defer unlock()

	logger := config.GetLogger()
	db := config.GetDB()
	tx := db.Begin()
	fail := func(err error) (*GRN, error) {
		tx.Rollback()
		return nil, err
	}

	grn, err := lockGRN(ctx, tx, grnNumber)
	if err != nil {
		return fail(err)
	}
	if !grn.TransferDetails.Exists() {
		return fail(utils.NewNotFoundError("Transfer for GRN", grnNumber))
	}
	transferStatus, err := grn.TransferDetails.Status.Next(TransferEventComplete)
	if err != nil {
		return fail(err)
	}
	grnStatus, err := grn.Status.NextForGRN(GRNEventTransferCompleted)
	if err != nil {
		return fail(err)
	}
	td = grn.TransferDetails

	if !td.CreditedAtInitiation {
		now := nowFunc()
		item, _ := grn.itemFor(td.ProductId)
		productName := ""
		if item != nil {
			productName = item.ProductName
		}
		if err := creditWarehouseStock(ctx, tx, warehouseCredit{
			ProductId:       td.ProductId,
			ProductName:     productName,
			WarehouseName:   td.ToWarehouse,
			Quantity:        td.Quantity,
			GrnBatchId:      grn.GrnNumber,
			ReceivedDate:    &now,
			Status:          StockStatusInWarehouse,
			MovementType:    MovementTypeTransferIn,
			ReferenceType:   "GRN",
			ReferenceNumber: grn.GrnNumber,
		}); err != nil {
			return fail(err)
		}
	}

	if err := tx.WithContext(ctx).Model(&WarehouseStock{}).
		Where("warehouse_name = ? AND (grn_batch_id = ? OR product_id = ?)", td.ToWarehouse, grn.GrnNumber, td.ProductId).
		Update("status", StockStatusInWarehouse).Error; err != nil {
		return fail(err)
	}
	// source row was flagged IN_TRANSIT at initiation
	if err := tx.WithContext(ctx).Model(&WarehouseStock{}).
		Where("warehouse_name = ? AND product_id = ? AND status = ?", td.FromWarehouse, td.ProductId, StockStatusInTransit).
		Update("status", StockStatusInWarehouse).Error; err != nil {
		return fail(err)
	}

	completedAt := nowFunc()
	grn.Status = grnStatus
	grn.TransferDetails.Status = transferStatus
	grn.TransferDetails.CompletedAt = &completedAt
	if err := saveTransferState(ctx, tx, grn); err != nil {
		return fail(err)
	}
	if err := recordLedgerEvent(ctx, tx, LedgerEventTransferCompleted, "GRN", grn.GrnNumber, grn.TransferDetails); err != nil {
		return fail(err)
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "Transfer", "CompleteTransfer", "Error committing transfer", grnNumber, err)
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"field":      "CompleteTransfer",
		"grn_number": grnNumber,
		"to":         td.ToWarehouse,
	}).Info("transfer completed")
	return GetGRN(ctx, grnNumber)
}

func saveTransferState(ctx context.Context, tx *gorm.DB, grn *GRN) error {
	td := grn.TransferDetails
	return tx.WithContext(ctx).Model(&GRN{}).Where("id = ?", grn.ID).Updates(map[string]interface{}{
		"status":                          grn.Status,
		"transfer_product_id":             td.ProductId,
		"transfer_from_warehouse":         td.FromWarehouse,
		"transfer_to_warehouse":           td.ToWarehouse,
		"transfer_quantity":               td.Quantity,
		"transfer_status":                 td.Status,
		"transfer_credited_at_initiation": td.CreditedAtInitiation,
		"transfer_initiated_at":           td.InitiatedAt,
		"transfer_completed_at":           td.CompletedAt,
	}).Error
}
