package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/supplies_backend/utils"
	"gorm.io/gorm"
)

type IdempotencyScope string

const (
	IdempotencyScopeGRN      IdempotencyScope = "GRN"
	IdempotencyScopeOutward  IdempotencyScope = "OUTWARD"
	IdempotencyScopeTransfer IdempotencyScope = "TRANSFER"
)

// IdempotencyKey remembers which document a client request key produced.
// Unique constraint: (scope, request_key).
type IdempotencyKey struct {
	ID              int              `gorm:"primary_key" json:"id"`
	Scope           IdempotencyScope `gorm:"size:20;not null;index:uniq_idem,unique" json:"scope"`
	RequestKey      string           `gorm:"size:255;not null;index:uniq_idem,unique" json:"requestKey"`
	ReferenceNumber string           `gorm:"size:64;not null" json:"referenceNumber"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"createdAt"`
}

// findIdempotentReference returns the document number recorded for the request key on ctx, if any.
func findIdempotentReference(ctx context.Context, tx *gorm.DB, scope IdempotencyScope) (string, bool, error) {
	key, ok := utils.GetIdempotencyKeyFromContext(ctx)
	if !ok {
		return "", false, nil
	}
	var record IdempotencyKey
	err := tx.WithContext(ctx).Where("scope = ? AND request_key = ?", scope, key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return record.ReferenceNumber, true, nil
}

// rememberIdempotentReference stores the key inside tx. A concurrent request with the
// same key makes the insert fail with a duplicate key and its whole tx rolls back.
func rememberIdempotentReference(ctx context.Context, tx *gorm.DB, scope IdempotencyScope, referenceNumber string) error {
	key, ok := utils.GetIdempotencyKeyFromContext(ctx)
	if !ok {
		return nil
	}
	return tx.WithContext(ctx).Create(&IdempotencyKey{
		Scope:           scope,
		RequestKey:      key,
		ReferenceNumber: referenceNumber,
	}).Error
}

// lookupIdempotentReference is used after a lost duplicate-key race, outside the failed tx.
func lookupIdempotentReference(ctx context.Context, db *gorm.DB, scope IdempotencyScope) (string, bool) {
	ref, ok, err := findIdempotentReference(ctx, db, scope)
	if err != nil || !ok {
		return "", false
	}
	return ref, true
}
