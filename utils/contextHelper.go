package utils

import (
	"context"

	"github.com/mmdatafocus/supplies_backend/appctx"
)

var (
	ContextKeyUsername          = appctx.ContextKeyUsername
	ContextKeyCorrelationId     = appctx.ContextKeyCorrelationId
	ContextKeyIdempotencyKey    = appctx.ContextKeyIdempotencyKey
	ContextKeyLedgerMaintenance = appctx.ContextKeyLedgerMaintenance
)

func GetUsernameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUsername)
}

func SetUsernameInContext(ctx context.Context, username string) context.Context {
	return appctx.Set(ctx, ContextKeyUsername, username)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func GetIdempotencyKeyFromContext(ctx context.Context) (string, bool) {
	v, ok := appctx.GetString(ctx, ContextKeyIdempotencyKey)
	return v, ok && v != ""
}

func SetIdempotencyKeyInContext(ctx context.Context, key string) context.Context {
	return appctx.Set(ctx, ContextKeyIdempotencyKey, key)
}

func SetLedgerMaintenanceInContext(ctx context.Context, allow bool) context.Context {
	return appctx.Set(ctx, ContextKeyLedgerMaintenance, allow)
}
