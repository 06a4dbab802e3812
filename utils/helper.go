package utils

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator shares gin's "binding" tag so HTTP and direct callers get the same checks.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.SetTagName("binding")
	})
	return validate
}

// ValidateStruct runs tag validation and reports failures as a ValidationError.
func ValidateStruct(input any) error {
	if err := Validator().Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := ProcessValidationErrors(verrs)
			parts := make([]string, 0, len(fields))
			for field, tag := range fields {
				parts = append(parts, field+" "+tag)
			}
			sort.Strings(parts)
			return NewValidationError("invalid input: %s", strings.Join(parts, ", "))
		}
		return NewValidationError("invalid input: %v", err)
	}
	return nil
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]bool, len(slice))
	result := make([]T, 0, len(slice))
	for _, v := range slice {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	var zero T
	if len(defaults) > 0 {
		return defaults[0]
	}
	return zero
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}
	return decimal.NewFromString(value)
}

// StockLockKey names the distributed lock of one ledger row.
func StockLockKey(ledger string, parts ...string) string {
	return "stockLock:" + ledger + ":" + strings.Join(parts, ":")
}

// StockLock serializes writers of the same ledger rows across instances.
// Keys are taken in sorted order. Without Redis it is a no-op: the conditional
// UPDATE in the ledger layer is what keeps stock non-negative.
func StockLock(ctx context.Context, moduleName string, functionName string, keys ...string) (func(), error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}, nil
	}
	logger := config.GetLogger()

	keys = UniqueSlice(keys)
	sort.Strings(keys)

	held := make([]*redislock.Lock, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			_ = held[i].Release(context.Background())
		}
	}
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 40),
	}
	for _, key := range keys {
		lock, err := locker.Obtain(ctx, key, 30*time.Second, opts)
		if errors.Is(err, redislock.ErrNotObtained) {
			release()
			config.LogError(logger, moduleName, functionName, "Could not obtain stock lock", key, err)
			return nil, NewConflictError("stock %s is busy, retry later", strings.TrimPrefix(key, "stockLock:"))
		} else if err != nil {
			release()
			config.LogError(logger, moduleName, functionName, "Error obtaining stock lock", key, err)
			return nil, fmt.Errorf("obtain stock lock: %w", err)
		}
		held = append(held, lock)
	}
	return release, nil
}
