package plancache

import (
	"context"
	"fmt"
)

// Backend names accepted by Open
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Open creates the cache for backend. BackendNone returns a nil Cache, which
// callers treat as caching disabled.
func Open(ctx context.Context, backend string, config RedisConfig) (Cache, error) {
	switch backend {
	case BackendNone, "":
		return nil, nil
	case BackendMemory:
		return NewMemoryCache(config.Cache), nil
	case BackendRedis:
		c, err := NewRedisCache(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("connect plan cache at %s: %w", config.Addr, err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", backend)
	}
}
