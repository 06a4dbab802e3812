package models_test

import (
	"testing"

	"github.com/mmdatafocus/supplies_backend/models"
	"github.com/mmdatafocus/supplies_backend/utils"
)

func TestPurchaseOrderTransitions(t *testing.T) {
	cases := []struct {
		from    models.PurchaseOrderStatus
		event   models.PurchaseOrderEvent
		want    models.PurchaseOrderStatus
		wantErr bool
	}{
		{models.PurchaseOrderStatusCreated, models.PurchaseOrderEventPartialReceipt, models.PurchaseOrderStatusPartiallyReceived, false},
		{models.PurchaseOrderStatusCreated, models.PurchaseOrderEventFullReceipt, models.PurchaseOrderStatusClosed, false},
		{models.PurchaseOrderStatusPartiallyReceived, models.PurchaseOrderEventFullReceipt, models.PurchaseOrderStatusClosed, false},
		{models.PurchaseOrderStatusReference, models.PurchaseOrderEventFullReceipt, models.PurchaseOrderStatusReference, false},
		{models.PurchaseOrderStatusClosed, models.PurchaseOrderEventPartialReceipt, models.PurchaseOrderStatusClosed, true},
	}
	for _, tc := range cases {
		got, err := tc.from.Next(tc.event)
		if tc.wantErr {
			if !utils.IsConflictError(err) {
				t.Fatalf("%s + %s: expected ConflictError, got %v", tc.from, tc.event, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%s + %s: got %s, %v; want %s", tc.from, tc.event, got, err, tc.want)
		}
	}
	if !models.PurchaseOrderStatusClosed.IsTerminal() || models.PurchaseOrderStatusReference.IsTerminal() {
		t.Fatalf("only PO_CLOSED is terminal")
	}
}

func TestTransferAndGRNTransitions(t *testing.T) {
	s, err := models.TransferStatusNone.Next(models.TransferEventInitiate)
	if err != nil || s != models.TransferStatusInTransit {
		t.Fatalf("initiate: got %s, %v", s, err)
	}
	if _, err := models.TransferStatusNone.Next(models.TransferEventComplete); !utils.IsConflictError(err) {
		t.Fatalf("complete before initiate: %v", err)
	}
	s, err = models.TransferStatusInTransit.Next(models.TransferEventComplete)
	if err != nil || s != models.TransferStatusCompleted {
		t.Fatalf("complete: got %s, %v", s, err)
	}
	for _, ev := range []models.TransferEvent{models.TransferEventInitiate, models.TransferEventComplete} {
		if _, err := models.TransferStatusCompleted.Next(ev); !utils.IsConflictError(err) {
			t.Fatalf("completed + %s: %v", ev, err)
		}
	}

	if st, err := models.StockStatusInWarehouse.NextForGRN(models.GRNEventTransferInitiated); err != nil || st != models.StockStatusInTransit {
		t.Fatalf("grn initiate: got %s, %v", st, err)
	}
	if _, err := models.StockStatusDelivered.NextForGRN(models.GRNEventTransferInitiated); !utils.IsConflictError(err) {
		t.Fatalf("delivered GRN cannot be transferred: %v", err)
	}
}

func TestInwardAndOutwardTransitions(t *testing.T) {
	if s, err := models.InwardStatusPendingGRN.Next(models.InwardEventGRNPosted); err != nil || s != models.InwardStatusGRNCreated {
		t.Fatalf("inward: got %s, %v", s, err)
	}
	if _, err := models.InwardStatusGRNCreated.Next(models.InwardEventGRNPosted); !utils.IsConflictError(err) {
		t.Fatalf("second GRN: %v", err)
	}
	if ty, err := models.OutwardTypeSample.Next(models.OutwardEventConvertToSale); err != nil || ty != models.OutwardTypeOfflineDirect {
		t.Fatalf("sample conversion: got %s, %v", ty, err)
	}
	if _, err := models.OutwardTypeOfflineDirect.Next(models.OutwardEventConvertToSale); !utils.IsConflictError(err) {
		t.Fatalf("sale conversion: %v", err)
	}
}
