package models

import (
	"errors"
	"strings"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/supplies_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("supplies_backend/models")

// nowFunc is swapped in tests that need a fixed calendar year.
var nowFunc = func() time.Time { return time.Now().UTC() }

// Location is the physical slot of received stock inside a warehouse.
type Location struct {
	Zone string `gorm:"size:50" json:"zone"`
	Rack string `gorm:"size:50" json:"rack"`
	Bin  string `gorm:"size:50" json:"bin"`
}

func (l Location) IsZero() bool {
	return l.Zone == "" && l.Rack == "" && l.Bin == ""
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// sqlite
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// firstOrCreateForUpdate locks the row matching query, creating it from row when absent.
// A concurrent creator losing the unique-index race re-reads the winner's row.
func firstOrCreateForUpdate[T any](tx *gorm.DB, row *T, query string, args ...any) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(query, args...).FirstOrCreate(row).Error
	if err == nil {
		return nil
	}
	if !isDuplicateKeyErr(err) {
		return err
	}
	var existing T
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(query, args...).First(&existing).Error; err != nil {
		return err
	}
	*row = existing
	return nil
}

func requireNonNegative(field string, productId string, v decimal.Decimal) error {
	if v.IsNegative() {
		return utils.NewValidationError("%s for product %s cannot be negative", field, productId)
	}
	return nil
}

func requirePositive(field string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return utils.NewValidationError("%s must be greater than zero", field)
	}
	return nil
}

func maxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
