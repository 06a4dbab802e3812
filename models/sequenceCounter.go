package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SequenceCounter holds the last issued value per prefix and period.
// Period is the calendar year for yearly series and empty otherwise.
type SequenceCounter struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Prefix    string    `gorm:"size:20;not null;index:uniq_seq_prefix_period,unique" json:"prefix"`
	Period    string    `gorm:"size:10;not null;default:'';index:uniq_seq_prefix_period,unique" json:"period"`
	Value     int64     `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type DocumentNumberKind string

const (
	DocumentNumberPurchaseOrder DocumentNumberKind = "purchase_order"
	DocumentNumberInward        DocumentNumberKind = "inward"
	DocumentNumberGRNInward     DocumentNumberKind = "grn_inward"
	DocumentNumberGRNDirect     DocumentNumberKind = "grn_direct"
	DocumentNumberInvoice       DocumentNumberKind = "invoice"
	DocumentNumberOrder         DocumentNumberKind = "order"
	DocumentNumberQuotation     DocumentNumberKind = "quotation"
)

type numberFormat struct {
	prefix string
	yearly bool
	width  int
	// existing documents used to seed a brand new counter row
	table  string
	column string
	// digits of the unix-ms timestamp used when the counter fails; 0 means no fallback
	fallbackDigits int
}

var numberFormats = map[DocumentNumberKind]numberFormat{
	DocumentNumberPurchaseOrder: {prefix: "PO", width: 4, table: "purchase_orders", column: "po_number", fallbackDigits: 4},
	DocumentNumberInward:        {prefix: "INW", yearly: true, width: 4, table: "inward_entries", column: "inward_number"},
	DocumentNumberGRNInward:     {prefix: "GRN", yearly: true, width: 4, table: "grns", column: "grn_number"},
	DocumentNumberGRNDirect:     {prefix: "GRN", width: 6, table: "grns", column: "grn_number", fallbackDigits: 6},
	DocumentNumberInvoice:       {prefix: "INV", width: 4, fallbackDigits: 4},
	DocumentNumberOrder:         {prefix: "ORD", width: 4},
	DocumentNumberQuotation:     {prefix: "QUO", width: 4},
}

func (k DocumentNumberKind) IsValid() bool {
	_, ok := numberFormats[k]
	return ok
}

func (f numberFormat) period(now time.Time) string {
	if f.yearly {
		return strconv.Itoa(now.Year())
	}
	return ""
}

func (f numberFormat) format(period string, value int64) string {
	if f.yearly {
		return fmt.Sprintf("%s-%s-%0*d", f.prefix, period, f.width, value)
	}
	return fmt.Sprintf("%s-%0*d", f.prefix, f.width, value)
}

func (f numberFormat) fallback(now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	return f.prefix + "-" + ms[len(ms)-f.fallbackDigits:]
}

// seedValue returns the highest numeric suffix already in use for this series,
// so that a fresh counter continues where existing documents left off.
// Suffixes that are not plain integers (e.g. yearly GRNs under the GRN- prefix) are skipped.
func (f numberFormat) seedValue(tx *gorm.DB, period string) (int64, error) {
	if f.table == "" || !tx.Migrator().HasTable(f.table) {
		return 0, nil
	}
	head := f.prefix + "-"
	if f.yearly {
		head += period + "-"
	}
	var numbers []string
	if err := tx.Table(f.table).Where(f.column+" LIKE ?", head+"%").Pluck(f.column, &numbers).Error; err != nil {
		return 0, err
	}
	var max int64
	for _, n := range numbers {
		v, err := strconv.ParseInt(strings.TrimPrefix(n, head), 10, 64)
		if err != nil {
			continue
		}
		if v > max {
			max = v
		}
	}
	return max, nil
}

// nextSequence increments the counter row of (prefix, period) inside tx and returns the new value.
func nextSequence(tx *gorm.DB, f numberFormat, period string) (int64, error) {
	counter := SequenceCounter{Prefix: f.prefix, Period: period}
	if f.yearly {
		// yearly and global series share a prefix (GRN), keep them apart
		counter.Prefix = f.prefix + "-Y"
	}
	if err := firstOrCreateForUpdate(tx, &counter, "prefix = ? AND period = ?", counter.Prefix, counter.Period); err != nil {
		return 0, err
	}
	if counter.Value == 0 {
		seed, err := f.seedValue(tx, period)
		if err != nil {
			return 0, err
		}
		if seed > 0 {
			if err := tx.Model(&SequenceCounter{}).Where("id = ? AND value = 0", counter.ID).Update("value", seed).Error; err != nil {
				return 0, err
			}
		}
	}
	if err := tx.Exec("UPDATE sequence_counters SET value = value + 1 WHERE id = ?", counter.ID).Error; err != nil {
		return 0, err
	}
	var value int64
	if err := tx.Model(&SequenceCounter{}).Where("id = ?", counter.ID).Pluck("value", &value).Error; err != nil {
		return 0, err
	}
	return value, nil
}

// nextDocumentNumber issues the next identifier of kind inside tx.
// Series with a timestamp fallback never fail; the others return the counter error.
func nextDocumentNumber(ctx context.Context, tx *gorm.DB, kind DocumentNumberKind) (string, error) {
	f, ok := numberFormats[kind]
	if !ok {
		return "", utils.NewValidationError("unknown document number kind %q", kind)
	}
	now := nowFunc()
	period := f.period(now)
	value, err := nextSequence(tx.WithContext(ctx), f, period)
	if err != nil {
		if f.fallbackDigits == 0 {
			return "", err
		}
		number := f.fallback(now)
		config.GetLogger().WithFields(logrus.Fields{
			"field":    "nextDocumentNumber",
			"kind":     kind,
			"fallback": number,
			"error":    err.Error(),
		}).Warn("sequence counter failed, using timestamp number")
		return number, nil
	}
	return f.format(period, value), nil
}

// ReserveDocumentNumber returns supplied when it is non-empty, otherwise a fresh number of kind.
func ReserveDocumentNumber(ctx context.Context, kind DocumentNumberKind, supplied string) (string, error) {
	if s := strings.TrimSpace(supplied); s != "" {
		return s, nil
	}
	if !kind.IsValid() {
		return "", utils.NewValidationError("unknown document number kind %q", kind)
	}

	db := config.GetDB()
	tx := db.Begin()
	number, err := nextDocumentNumber(ctx, tx, kind)
	if err != nil {
		tx.Rollback()
		config.LogError(config.GetLogger(), "SequenceCounter", "ReserveDocumentNumber", "Error issuing number", kind, err)
		return "", err
	}
	if err := tx.Commit().Error; err != nil {
		f := numberFormats[kind]
		if f.fallbackDigits > 0 {
			return f.fallback(nowFunc()), nil
		}
		return "", err
	}
	return number, nil
}
