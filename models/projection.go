package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const reconciliationCacheKey = "ledger:reconcile:latest"

// ProjectionDrift is a ledger row whose stored quantity disagrees with its movement log.
type ProjectionDrift struct {
	Ledger        MovementLedger  `json:"ledger"`
	ProductId     string          `json:"productId"`
	WarehouseName string          `json:"warehouseName,omitempty"`
	CustomerId    string          `json:"customerId,omitempty"`
	Stored        decimal.Decimal `json:"stored"`
	FromMovements decimal.Decimal `json:"fromMovements"`
	Difference    decimal.Decimal `json:"difference"`
	// no movement has ever been logged for the row
	Unlogged bool `json:"unlogged"`
}

type ReconciliationReport struct {
	CheckedAt     time.Time         `json:"checkedAt"`
	WarehouseRows int               `json:"warehouseRows"`
	CustomerRows  int               `json:"customerRows"`
	Drifts        []ProjectionDrift `json:"drifts"`
	// set by RebuildProjections only
	Repaired int               `json:"repaired,omitempty"`
	Skipped  []ProjectionDrift `json:"skipped,omitempty"`
}

func (r *ReconciliationReport) Clean() bool {
	return len(r.Drifts) == 0
}

type projectionKey struct {
	ledger        MovementLedger
	productId     string
	warehouseName string
	customerId    string
}

type movementTotal struct {
	Ledger        MovementLedger
	ProductId     string
	WarehouseName string
	CustomerId    string
	Total         decimal.Decimal
}

func movementTotals(ctx context.Context, db *gorm.DB) (map[projectionKey]decimal.Decimal, error) {
	var rows []movementTotal
	err := db.WithContext(ctx).Model(&StockMovement{}).
		Select("ledger, product_id, warehouse_name, customer_id, SUM(quantity) AS total").
		Group("ledger, product_id, warehouse_name, customer_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	totals := make(map[projectionKey]decimal.Decimal, len(rows))
	for _, r := range rows {
		key := projectionKey{ledger: r.Ledger, productId: r.ProductId}
		if r.Ledger == MovementLedgerWarehouse {
			key.warehouseName = r.WarehouseName
		} else {
			key.customerId = r.CustomerId
		}
		totals[key] = totals[key].Add(r.Total)
	}
	return totals, nil
}

// ReconcileProjections compares WarehouseStock.availableStock and CustomerInventory.quantity
// with the sum of their movements. The report is cached for LatestReconciliationReport.
func ReconcileProjections(ctx context.Context) (*ReconciliationReport, error) {
	ctx, span := tracer.Start(ctx, "ReconcileProjections")
	defer span.End()

	logger := config.GetLogger()
	report, err := compareProjections(ctx, config.GetDB(), false)
	if err != nil {
		config.LogError(logger, "Projection", "ReconcileProjections", "Error comparing projections", nil, err)
		return nil, err
	}
	if err := utils.StoreRedis(ctx, reconciliationCacheKey, report); err != nil {
		config.LogError(logger, "Projection", "ReconcileProjections", "Error caching report", nil, err)
	}
	if !report.Clean() {
		logger.WithFields(logrus.Fields{
			"field":  "ReconcileProjections",
			"drifts": len(report.Drifts),
		}).Warn("ledger projections drifted from movement log")
	}
	return report, nil
}

// compareProjections reads the projection rows before the movement sums, so with lock set
// the sums cover every movement committed against the rows it holds.
func compareProjections(ctx context.Context, db *gorm.DB, lock bool) (*ReconciliationReport, error) {
	rows := db.WithContext(ctx)
	if lock {
		rows = rows.Clauses(clause.Locking{Strength: "UPDATE"}).Session(&gorm.Session{})
	}
	var stocks []WarehouseStock
	if err := rows.Order("id").Find(&stocks).Error; err != nil {
		return nil, err
	}
	var inventories []CustomerInventory
	if err := rows.Order("id").Find(&inventories).Error; err != nil {
		return nil, err
	}
	totals, err := movementTotals(ctx, db)
	if err != nil {
		return nil, err
	}

	report := ReconciliationReport{
		CheckedAt:     time.Now().UTC(),
		WarehouseRows: len(stocks),
		CustomerRows:  len(inventories),
		Drifts:        []ProjectionDrift{},
	}
	seen := make(map[projectionKey]bool, len(totals))
	compare := func(key projectionKey, stored decimal.Decimal) {
		seen[key] = true
		logged, ok := totals[key]
		if ok && logged.Equal(stored) {
			return
		}
		if !ok && stored.IsZero() {
			return
		}
		report.Drifts = append(report.Drifts, ProjectionDrift{
			Ledger:        key.ledger,
			ProductId:     key.productId,
			WarehouseName: key.warehouseName,
			CustomerId:    key.customerId,
			Stored:        stored,
			FromMovements: logged,
			Difference:    stored.Sub(logged),
			Unlogged:      !ok,
		})
	}
	for _, s := range stocks {
		compare(projectionKey{ledger: MovementLedgerWarehouse, productId: s.ProductId, warehouseName: s.WarehouseName}, s.AvailableStock)
	}
	for _, ci := range inventories {
		compare(projectionKey{ledger: MovementLedgerCustomer, productId: ci.ProductId, customerId: ci.CustomerId}, ci.Quantity)
	}
	for key, logged := range totals {
		if seen[key] || logged.IsZero() {
			continue
		}
		report.Drifts = append(report.Drifts, ProjectionDrift{
			Ledger:        key.ledger,
			ProductId:     key.productId,
			WarehouseName: key.warehouseName,
			CustomerId:    key.customerId,
			FromMovements: logged,
			Difference:    logged.Neg(),
		})
	}
	return &report, nil
}

// LatestReconciliationReport serves the cached report, running a check when none is cached.
func LatestReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	cached, err := utils.RetrieveRedis[ReconciliationReport](ctx, reconciliationCacheKey)
	if err == nil && cached != nil {
		return cached, nil
	}
	return ReconcileProjections(ctx)
}

// RebuildProjections makes the stored quantities match the movement log.
// Rows that predate the log get a REBUILD movement instead, adopting their stored value.
// The check and the repair share one transaction holding the projection rows; a row whose
// stored value no longer matches what was checked is left alone and listed in Skipped.
func RebuildProjections(ctx context.Context) (*ReconciliationReport, error) {
	ctx, span := tracer.Start(ctx, "RebuildProjections")
	defer span.End()

	logger := config.GetLogger()
	db := config.GetDB()

	tx := db.Begin()
	fail := func(err error) (*ReconciliationReport, error) {
		tx.Rollback()
		return nil, err
	}

	checked, err := compareProjections(ctx, tx, true)
	if err != nil {
		config.LogError(logger, "Projection", "RebuildProjections", "Error comparing projections", nil, err)
		return fail(err)
	}
	if checked.Clean() {
		tx.Rollback()
		return ReconcileProjections(ctx)
	}

	repaired := 0
	skipped := []ProjectionDrift{}
	for _, d := range checked.Drifts {
		applied, err := repairDrift(ctx, tx, d, checked.CheckedAt)
		if err != nil {
			config.LogError(logger, "Projection", "RebuildProjections", "Error rebuilding projection", d, err)
			return fail(err)
		}
		if !applied {
			skipped = append(skipped, d)
			continue
		}
		repaired++
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "Projection", "RebuildProjections", "Error committing rebuild", nil, err)
		return nil, err
	}

	fields := logrus.Fields{
		"field":    "RebuildProjections",
		"repaired": repaired,
		"skipped":  len(skipped),
	}
	if len(skipped) > 0 {
		logger.WithFields(fields).Warn("some projections changed or were missing during rebuild; left for the next run")
	} else {
		logger.WithFields(fields).Info("ledger projections rebuilt")
	}

	report, err := ReconcileProjections(ctx)
	if err != nil {
		return nil, err
	}
	report.Repaired = repaired
	if len(skipped) > 0 {
		report.Skipped = skipped
	}
	return report, nil
}

// repairDrift applies one correction, guarded on the stored value that was checked.
// It reports false when the row moved on or does not exist.
func repairDrift(ctx context.Context, tx *gorm.DB, d ProjectionDrift, checkedAt time.Time) (bool, error) {
	if d.Unlogged {
		var q *gorm.DB
		if d.Ledger == MovementLedgerWarehouse {
			q = tx.WithContext(ctx).Model(&WarehouseStock{}).
				Where("product_id = ? AND warehouse_name = ? AND available_stock = ?", d.ProductId, d.WarehouseName, d.Stored)
		} else {
			q = tx.WithContext(ctx).Model(&CustomerInventory{}).
				Where("product_id = ? AND customer_id = ? AND quantity = ?", d.ProductId, d.CustomerId, d.Stored)
		}
		var n int64
		if err := q.Count(&n).Error; err != nil || n == 0 {
			return false, err
		}
		err := appendMovement(ctx, tx, StockMovement{
			Ledger:          d.Ledger,
			ProductId:       d.ProductId,
			WarehouseName:   d.WarehouseName,
			CustomerId:      d.CustomerId,
			Quantity:        d.Stored,
			MovementType:    MovementTypeRebuild,
			ReferenceType:   "Rebuild",
			ReferenceNumber: checkedAt.Format(time.RFC3339),
		})
		return err == nil, err
	}

	var res *gorm.DB
	if d.Ledger == MovementLedgerWarehouse {
		res = tx.WithContext(ctx).Model(&WarehouseStock{}).
			Where("product_id = ? AND warehouse_name = ? AND available_stock = ?", d.ProductId, d.WarehouseName, d.Stored).
			Update("available_stock", d.FromMovements)
	} else {
		res = tx.WithContext(ctx).Model(&CustomerInventory{}).
			Where("product_id = ? AND customer_id = ? AND quantity = ?", d.ProductId, d.CustomerId, d.Stored).
			Update("quantity", d.FromMovements)
	}
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
