package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryItem struct {
	data     []byte
	expireAt time.Time
}

func (m memoryItem) expired() bool {
	return !m.expireAt.IsZero() && time.Now().After(m.expireAt)
}

// MemoryCache implements Service with an in-process map. It is safe for
// concurrent use and is the default credential-cache backend when Redis
// is not configured.
type MemoryCache struct {
	mu      sync.RWMutex
	data    map[string]memoryItem
	maxSize int
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates an in-memory cache with background expiry sweeps.
func NewMemoryCache(maxSize int, cleanupInterval time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	c := &MemoryCache{
		data:    make(map[string]memoryItem),
		maxSize: maxSize,
		stop:    make(chan struct{}),
	}
	go c.sweep(cleanupInterval)
	return c
}

func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var expireAt time.Time
	if expiration > 0 {
		expireAt = time.Now().Add(expiration)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.data) >= c.maxSize {
		c.evictOneLocked()
	}
	c.data[key] = memoryItem{data: data, expireAt: expireAt}
	return nil
}

func (c *MemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.RLock()
	item, ok := c.data[key]
	c.mu.RUnlock()
	if !ok || item.expired() {
		return ErrCacheMiss
	}
	return json.Unmarshal(item.data, dest)
}

func (c *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, k := range keys {
		if item, ok := c.data[k]; ok && !item.expired() {
			return true, nil
		}
	}
	return false, nil
}

func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

// evictOneLocked drops the entry closest to expiry, or an arbitrary one
// when nothing expires.
func (c *MemoryCache) evictOneLocked() {
	var victim string
	var earliest time.Time
	for k, item := range c.data {
		if victim == "" || (!item.expireAt.IsZero() && (earliest.IsZero() || item.expireAt.Before(earliest))) {
			victim = k
			earliest = item.expireAt
		}
	}
	if victim != "" {
		delete(c.data, victim)
	}
}

func (c *MemoryCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			for k, item := range c.data {
				if item.expired() {
					delete(c.data, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
