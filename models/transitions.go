package models

import (
	"github.com/mmdatafocus/supplies_backend/utils"
)

// Every status change goes through one of the tables below. A (state, event)
// pair that is not listed is rejected with a ConflictError.

type PurchaseOrderEvent string

const (
	PurchaseOrderEventPartialReceipt PurchaseOrderEvent = "PARTIAL_RECEIPT"
	PurchaseOrderEventFullReceipt    PurchaseOrderEvent = "FULL_RECEIPT"
)

var purchaseOrderTransitions = map[PurchaseOrderStatus]map[PurchaseOrderEvent]PurchaseOrderStatus{
	PurchaseOrderStatusCreated: {
		PurchaseOrderEventPartialReceipt: PurchaseOrderStatusPartiallyReceived,
		PurchaseOrderEventFullReceipt:    PurchaseOrderStatusClosed,
	},
	PurchaseOrderStatusPartiallyReceived: {
		PurchaseOrderEventPartialReceipt: PurchaseOrderStatusPartiallyReceived,
		PurchaseOrderEventFullReceipt:    PurchaseOrderStatusClosed,
	},
	// reference orders never auto-close
	PurchaseOrderStatusReference: {
		PurchaseOrderEventPartialReceipt: PurchaseOrderStatusReference,
		PurchaseOrderEventFullReceipt:    PurchaseOrderStatusReference,
	},
}

func (s PurchaseOrderStatus) Next(event PurchaseOrderEvent) (PurchaseOrderStatus, error) {
	if to, ok := purchaseOrderTransitions[s][event]; ok {
		return to, nil
	}
	return s, utils.NewConflictError("purchase order in status %s cannot accept %s", s, event)
}

func (s PurchaseOrderStatus) IsTerminal() bool {
	return s == PurchaseOrderStatusClosed
}

type InwardEvent string

const InwardEventGRNPosted InwardEvent = "GRN_POSTED"

var inwardTransitions = map[InwardStatus]map[InwardEvent]InwardStatus{
	InwardStatusPendingGRN: {InwardEventGRNPosted: InwardStatusGRNCreated},
}

func (s InwardStatus) Next(event InwardEvent) (InwardStatus, error) {
	if to, ok := inwardTransitions[s][event]; ok {
		return to, nil
	}
	if s == InwardStatusGRNCreated {
		return s, utils.NewConflictError("inward entry already has a GRN")
	}
	return s, utils.NewConflictError("inward entry in status %s cannot accept %s", s, event)
}

type TransferEvent string

const (
	TransferEventInitiate TransferEvent = "INITIATE"
	TransferEventComplete TransferEvent = "COMPLETE"
)

// pending is the implicit state of a GRN that has never been transferred.
var transferTransitions = map[TransferStatus]map[TransferEvent]TransferStatus{
	TransferStatusNone:      {TransferEventInitiate: TransferStatusInTransit},
	TransferStatusPending:   {TransferEventInitiate: TransferStatusInTransit},
	TransferStatusInTransit: {TransferEventComplete: TransferStatusCompleted},
}

func (s TransferStatus) Next(event TransferEvent) (TransferStatus, error) {
	if to, ok := transferTransitions[s][event]; ok {
		return to, nil
	}
	return s, utils.NewConflictError("transfer in status %q cannot accept %s", s.orPending(), event)
}

func (s TransferStatus) orPending() TransferStatus {
	if s == TransferStatusNone {
		return TransferStatusPending
	}
	return s
}

type GRNEvent string

const (
	GRNEventTransferInitiated GRNEvent = "TRANSFER_INITIATED"
	GRNEventTransferCompleted GRNEvent = "TRANSFER_COMPLETED"
)

var grnTransitions = map[StockStatus]map[GRNEvent]StockStatus{
	StockStatusInWarehouse: {GRNEventTransferInitiated: StockStatusInTransit},
	StockStatusInTransit:   {GRNEventTransferCompleted: StockStatusInWarehouse},
}

func (s StockStatus) NextForGRN(event GRNEvent) (StockStatus, error) {
	if to, ok := grnTransitions[s][event]; ok {
		return to, nil
	}
	return s, utils.NewConflictError("GRN in status %s cannot accept %s", s, event)
}

type OutwardEvent string

const OutwardEventConvertToSale OutwardEvent = "CONVERT_TO_SALE"

var outwardTransitions = map[OutwardType]map[OutwardEvent]OutwardType{
	OutwardTypeSample: {OutwardEventConvertToSale: OutwardTypeOfflineDirect},
}

func (t OutwardType) Next(event OutwardEvent) (OutwardType, error) {
	if to, ok := outwardTransitions[t][event]; ok {
		return to, nil
	}
	return t, utils.NewConflictError("only sample entries can be converted to a sale")
}
