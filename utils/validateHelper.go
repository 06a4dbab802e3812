package utils

import (
	"context"

	"gorm.io/gorm"
)

// ResourceCountWhere counts T rows matching condition.
func ResourceCountWhere[T any](ctx context.Context, db *gorm.DB, condition string, value ...interface{}) (int64, error) {
	var model T
	var count int64
	if err := db.WithContext(ctx).Model(&model).Where(condition, value...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ValidateResourceExists returns NotFoundError(resource, key) when no T matches condition.
func ValidateResourceExists[T any](ctx context.Context, db *gorm.DB, resource string, key string, condition string, value ...interface{}) error {
	count, err := ResourceCountWhere[T](ctx, db, condition, value...)
	if err != nil {
		return err
	}
	if count <= 0 {
		return NewNotFoundError(resource, key)
	}
	return nil
}
