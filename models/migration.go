package models

import (
	"log"

	"github.com/mmdatafocus/supplies_backend/config"
	"gorm.io/gorm"
)

func MigrateTable() {
	if err := MigrateSchema(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}

// MigrateSchema creates or updates every ledger table on db.
func MigrateSchema(db *gorm.DB) error {
	return db.AutoMigrate(
		&Product{}, &Customer{},
		&PurchaseOrder{}, &PurchaseOrderItem{},
		&InwardEntry{}, &InwardEntryItem{},
		&GRN{}, &GRNItem{},
		&WarehouseStock{}, &CustomerInventory{},
		&WasteEntry{}, &OutwardEntry{},
		&StockMovement{},
		&SequenceCounter{},
		&IdempotencyKey{},
		&LedgerEvent{},
	)
}
