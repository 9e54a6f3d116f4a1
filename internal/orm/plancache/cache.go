// Package plancache stores rendered command text by query shape so repeated
// compilations of the same query skip rendering.
package plancache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Cache defines the interface for all command-text cache backends
type Cache interface {
	// Get returns the command text stored under key
	Get(ctx context.Context, key string) (string, error)

	// Set stores command text under key
	Set(ctx context.Context, key string, sql string) error

	// Delete removes key
	Delete(ctx context.Context, key string) error

	// Clear removes every key the cache owns
	Clear(ctx context.Context) error

	// Close releases the backend
	Close() error
}

// Config holds common configuration for cache backends
type Config struct {
	// TTL is how long command text stays cached; zero keeps it forever
	TTL time.Duration
	// Prefix is prepended to all cache keys
	Prefix string
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() Config {
	return Config{
		TTL:    time.Hour,
		Prefix: "relmap:plan:",
	}
}

// ErrCacheMiss is returned when a key is not found in the cache
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

func miss(key string) error {
	return fmt.Errorf("%w: %s", ErrCacheMiss, key)
}
