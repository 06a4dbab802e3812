package models

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusCreated           PurchaseOrderStatus = "PO_CREATED"
	PurchaseOrderStatusReference         PurchaseOrderStatus = "PO_REFERENCE"
	PurchaseOrderStatusPartiallyReceived PurchaseOrderStatus = "PO_PARTIALLY_RECEIVED"
	PurchaseOrderStatusClosed            PurchaseOrderStatus = "PO_CLOSED"
)

func (s PurchaseOrderStatus) IsValid() bool {
	switch s {
	case PurchaseOrderStatusCreated, PurchaseOrderStatusReference, PurchaseOrderStatusPartiallyReceived, PurchaseOrderStatusClosed:
		return true
	}
	return false
}

type PurchaseOrderKind string

const (
	PurchaseOrderKindStandard  PurchaseOrderKind = "standard"
	PurchaseOrderKindReference PurchaseOrderKind = "reference"
)

type DeliveryType string

const (
	DeliveryTypeToWarehouse      DeliveryType = "to_warehouse"
	DeliveryTypeDirectToCustomer DeliveryType = "direct_to_customer"
)

type InwardKind string

const (
	InwardKindPOLinked     InwardKind = "PO_LINKED"
	InwardKindDirectInward InwardKind = "DIRECT_INWARD"
)

type InwardStatus string

const (
	InwardStatusPendingGRN InwardStatus = "PENDING_GRN"
	InwardStatusGRNCreated InwardStatus = "GRN_CREATED"
)

type GRNKind string

const (
	GRNKindCreated GRNKind = "GRN_CREATED"
	GRNKindDirect  GRNKind = "DIRECT_GRN"
)

// StockStatus is shared by GRN.Status and WarehouseStock.Status.
// DELIVERED only applies to GRNs.
type StockStatus string

const (
	StockStatusInWarehouse StockStatus = "IN_WAREHOUSE"
	StockStatusInTransit   StockStatus = "IN_TRANSIT"
	StockStatusDispatched  StockStatus = "DISPATCHED"
	StockStatusDelivered   StockStatus = "DELIVERED"
)

type TransferStatus string

const (
	TransferStatusNone      TransferStatus = ""
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusInTransit TransferStatus = "in_transit"
	TransferStatusCompleted TransferStatus = "completed"
)

type WasteReason string

const (
	WasteReasonDamaged WasteReason = "damaged"
	WasteReasonExpired WasteReason = "expired"
	WasteReasonLost    WasteReason = "lost"
	WasteReasonOther   WasteReason = "other"
)

func (r WasteReason) IsValid() bool {
	switch r {
	case WasteReasonDamaged, WasteReasonExpired, WasteReasonLost, WasteReasonOther:
		return true
	}
	return false
}

type AdjustmentType string

const (
	AdjustmentTypeFromGRN AdjustmentType = "from_grn"
	AdjustmentTypePostGRN AdjustmentType = "post_grn"
)

type WasteStatus string

const (
	WasteStatusWasted   WasteStatus = "WASTED"
	WasteStatusAdjusted WasteStatus = "ADJUSTED"
)

type OutwardType string

const (
	OutwardTypeOfflineDirect     OutwardType = "offline_direct"
	OutwardTypeSample            OutwardType = "sample"
	OutwardTypeReturnReplacement OutwardType = "return_replacement"
)

func (t OutwardType) IsValid() bool {
	switch t {
	case OutwardTypeOfflineDirect, OutwardTypeSample, OutwardTypeReturnReplacement:
		return true
	}
	return false
}
