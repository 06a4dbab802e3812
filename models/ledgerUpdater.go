package models

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func routesToCustomer(po *PurchaseOrder) bool {
	return po != nil && po.DeliveryType == DeliveryTypeDirectToCustomer && po.CustomerId != ""
}

// applyReceiptItem posts one GRN line to its ledgers. Routing, first match wins:
//  1. split allocation: warehouse gets warehouseQuantity, the customer gets its share
//  2. direct_to_customer PO with a bound customer: customer gets acceptedQuantity
//  3. anything else: warehouse gets acceptedQuantity
//
// The caller applies each line exactly once, inside the GRN transaction.
func applyReceiptItem(ctx context.Context, tx *gorm.DB, grn *GRN, po *PurchaseOrder, item GRNItem, split bool) error {
	switch {
	case split:
		if err := creditWarehouseFromGRN(ctx, tx, grn, item, item.WarehouseQuantity); err != nil {
			return err
		}
		if item.CustomerAllocation.Quantity.IsPositive() {
			return creditCustomerInventory(ctx, tx, customerCredit{
				ProductId:       item.ProductId,
				ProductName:     item.ProductName,
				CustomerId:      item.CustomerAllocation.CustomerId,
				CustomerName:    item.CustomerAllocation.CustomerName,
				Quantity:        item.CustomerAllocation.Quantity,
				Price:           item.UnitPrice,
				MovementType:    MovementTypeCustomerAllocation,
				ReferenceType:   "GRN",
				ReferenceNumber: grn.GrnNumber,
			})
		}
		return nil
	case routesToCustomer(po):
		return creditCustomerInventory(ctx, tx, customerCredit{
			ProductId:       item.ProductId,
			ProductName:     item.ProductName,
			CustomerId:      po.CustomerId,
			CustomerName:    po.CustomerName,
			Quantity:        item.AcceptedQuantity,
			Price:           po.unitPriceFor(item.ProductId),
			MovementType:    MovementTypeCustomerAllocation,
			ReferenceType:   "GRN",
			ReferenceNumber: grn.GrnNumber,
		})
	default:
		return creditWarehouseFromGRN(ctx, tx, grn, item, item.AcceptedQuantity)
	}
}

func creditWarehouseFromGRN(ctx context.Context, tx *gorm.DB, grn *GRN, item GRNItem, quantity decimal.Decimal) error {
	receivedDate := grn.ReceivedDate
	return creditWarehouseStock(ctx, tx, warehouseCredit{
		ProductId:            item.ProductId,
		ProductName:          item.ProductName,
		WarehouseName:        grn.WarehouseName,
		Quantity:             quantity,
		ReceivedFromSupplier: item.ReceivedQuantity,
		Supplier:             grn.SupplierName,
		GrnBatchId:           grn.GrnNumber,
		Location:             grn.Location,
		ReceivedDate:         &receivedDate,
		Status:               StockStatusInWarehouse,
		MovementType:         MovementTypeGRNReceipt,
		ReferenceType:        "GRN",
		ReferenceNumber:      grn.GrnNumber,
	})
}

// applyPurchaseOrderReceipt links the GRN and, for non-reference orders, rolls the
// received total forward and advances the status.
func applyPurchaseOrderReceipt(ctx context.Context, tx *gorm.DB, po *PurchaseOrder, grnNumber string, receivedSum decimal.Decimal) error {
	links := append(datatypes.JSONSlice[string]{}, po.GrnLinks...)
	links = append(links, grnNumber)
	updates := map[string]interface{}{
		"grn_links": links,
	}

	if !po.IsReference() {
		received := po.ReceivedQuantity.Add(receivedSum)
		total := po.totalOrdered()
		pending := maxDecimal(total.Sub(received), decimal.Zero)

		status := po.Status
		var event PurchaseOrderEvent
		if received.GreaterThanOrEqual(total) {
			event = PurchaseOrderEventFullReceipt
		} else if received.IsPositive() {
			event = PurchaseOrderEventPartialReceipt
		}
		if event != "" {
			next, err := po.Status.Next(event)
			if err != nil {
				return err
			}
			status = next
		}
		updates["received_quantity"] = received
		updates["total_ordered_quantity"] = total
		updates["pending_quantity"] = pending
		updates["status"] = status

		po.ReceivedQuantity = received
		po.TotalOrderedQuantity = total
		po.PendingQuantity = pending
		po.Status = status
	}
	po.GrnLinks = links
	return tx.WithContext(ctx).Model(&PurchaseOrder{}).Where("id = ?", po.ID).Updates(updates).Error
}

func markInwardReceived(ctx context.Context, tx *gorm.DB, inward *InwardEntry, grnNumber string) error {
	next, err := inward.Status.Next(InwardEventGRNPosted)
	if err != nil {
		return err
	}
	links := append(datatypes.JSONSlice[string]{}, inward.GrnLinks...)
	links = append(links, grnNumber)
	result := tx.WithContext(ctx).Model(&InwardEntry{}).
		Where("id = ? AND status = ?", inward.ID, inward.Status).
		Updates(map[string]interface{}{
			"status":    next,
			"grn_links": links,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// lost the race to another GRN for the same entry
		_, err := InwardStatusGRNCreated.Next(InwardEventGRNPosted)
		return err
	}
	inward.Status = next
	inward.GrnLinks = links
	return nil
}
