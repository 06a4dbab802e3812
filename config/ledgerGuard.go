package config

import (
	"context"
	"errors"

	"github.com/mmdatafocus/supplies_backend/appctx"
	"gorm.io/gorm"
)

var ErrImmutableLedger = errors.New("ledger record is immutable")

// immutableTables are append-only: corrections are new rows, never edits.
var immutableTables = map[string]bool{
	"grn_items":          true,
	"inward_entry_items": true,
	"waste_entries":      true,
	"stock_movements":    true,
}

// LedgerGuardPlugin rejects UPDATE and DELETE statements against append-only ledger tables.
//
// NOTE:
// - Raw SQL is not inspected.
// - Maintenance tools bypass the guard via appctx.ContextKeyLedgerMaintenance.
type LedgerGuardPlugin struct{}

func NewLedgerGuardPlugin() *LedgerGuardPlugin { return &LedgerGuardPlugin{} }

func (p *LedgerGuardPlugin) Name() string { return "ledger_guard" }

func (p *LedgerGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Update().Before("gorm:update").Register("ledger_guard:update", ledgerGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("ledger_guard:delete", ledgerGuardCallback); err != nil {
		return err
	}
	return nil
}

func ledgerGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	if allowsLedgerMaintenance(db.Statement.Context) {
		return
	}
	table := db.Statement.Table
	if table == "" && db.Statement.Schema != nil {
		table = db.Statement.Schema.Table
	}
	if immutableTables[table] {
		_ = db.AddError(ErrImmutableLedger)
	}
}

func allowsLedgerMaintenance(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, ok := appctx.GetBool(ctx, appctx.ContextKeyLedgerMaintenance)
	return ok && v
}
