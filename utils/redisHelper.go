package utils

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/mmdatafocus/supplies_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil || lifespan <= 0 {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

// StoreRedis caches obj under key for the configured lifespan.
func StoreRedis[T any](ctx context.Context, key string, obj *T) error {
	return config.SetRedisObject(ctx, key, obj, GetCacheLifespan())
}

// RetrieveRedis returns nil when the key is absent or Redis is not configured.
func RetrieveRedis[T any](ctx context.Context, key string) (*T, error) {
	var result T
	exists, err := config.GetRedisObject(ctx, key, &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return &result, nil
}
