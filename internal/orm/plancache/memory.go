package plancache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process cache with TTL support
type MemoryCache struct {
	data   sync.Map
	config Config
	cancel context.CancelFunc
}

type entry struct {
	sql        string
	expiration time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiration.IsZero() && now.After(e.expiration)
}

// NewMemoryCache creates an in-memory cache. Expired entries are swept once a
// minute until Close is called.
func NewMemoryCache(config Config) *MemoryCache {
	ctx, cancel := context.WithCancel(context.Background())
	mc := &MemoryCache{
		config: config,
		cancel: cancel,
	}
	go mc.sweep(ctx, time.Minute)
	return mc
}

// Get returns the command text stored under key
func (m *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fullKey := m.config.Prefix + key
	value, ok := m.data.Load(fullKey)
	if !ok {
		return "", miss(key)
	}
	item := value.(entry)
	if item.expired(time.Now()) {
		m.data.Delete(fullKey)
		return "", miss(key)
	}
	return item.sql, nil
}

// Set stores command text under key
func (m *MemoryCache) Set(ctx context.Context, key string, sql string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	item := entry{sql: sql}
	if m.config.TTL > 0 {
		item.expiration = time.Now().Add(m.config.TTL)
	}
	m.data.Store(m.config.Prefix+key, item)
	return nil
}

// Delete removes key
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data.Delete(m.config.Prefix + key)
	return nil
}

// Clear removes every entry
func (m *MemoryCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data.Range(func(key, _ any) bool {
		m.data.Delete(key)
		return true
	})
	return nil
}

// Len returns the number of live entries
func (m *MemoryCache) Len() int {
	n := 0
	now := time.Now()
	m.data.Range(func(_, value any) bool {
		if !value.(entry).expired(now) {
			n++
		}
		return true
	})
	return n
}

// Close stops the background sweep
func (m *MemoryCache) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

func (m *MemoryCache) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			m.data.Range(func(key, value any) bool {
				if value.(entry).expired(now) {
					m.data.Delete(key)
				}
				return true
			})
		}
	}
}
