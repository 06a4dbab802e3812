package utils

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// FetchModelWhere loads the first T matching condition. A missing row is
// reported as NotFoundError(resource, key).
func FetchModelWhere[T any](ctx context.Context, db *gorm.DB, resource string, key string, condition string, args []any, associations ...string) (*T, error) {
	dbCtx := db.WithContext(ctx)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	if err := dbCtx.Where(condition, args...).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError(resource, key)
		}
		return nil, err
	}
	return &result, nil
}

// ListModels returns every T matching the optional filters, newest first.
func ListModels[T any](ctx context.Context, db *gorm.DB, filters map[string]any, associations ...string) ([]T, error) {
	dbCtx := db.WithContext(ctx)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	for column, value := range filters {
		dbCtx = dbCtx.Where(column+" = ?", value)
	}
	var results []T
	if err := dbCtx.Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
