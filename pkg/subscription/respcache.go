package subscription

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedLookup is the unit stored in a response cache. Absent distinguishes a
// remembered "provider confirmed no subscription" from a plain cache miss, so
// a negative answer is cached just like a positive one.
type CachedLookup struct {
	Record *Record `json:"record,omitempty"`
	Absent bool    `json:"absent,omitempty"`
}

// ResponseCache remembers provider responses between calls. Implementations
// must treat a miss as (nil, nil), never as an error.
type ResponseCache interface {
	Get(ctx context.Context, providerID string, accountID int64) (*CachedLookup, error)
	Set(ctx context.Context, providerID string, accountID int64, v CachedLookup, ttl time.Duration) error
	Delete(ctx context.Context, providerID string, accountID int64) error
}

func respCacheKey(providerID string, accountID int64) string {
	return fmt.Sprintf("subscription:%s:%d", providerID, accountID)
}

// MemoryResponseCache is a per-process ResponseCache. Suitable when a single
// process serves all traffic; multi-process deployments share state through
// RedisResponseCache instead.
type MemoryResponseCache struct {
	store *gocache.Cache
}

// NewMemoryResponseCache creates an in-process response cache. Expired
// entries are purged in the background every cleanup interval.
func NewMemoryResponseCache(cleanupInterval time.Duration) *MemoryResponseCache {
	return &MemoryResponseCache{
		store: gocache.New(DefaultCacheDuration, cleanupInterval),
	}
}

func (c *MemoryResponseCache) Get(_ context.Context, providerID string, accountID int64) (*CachedLookup, error) {
	v, found := c.store.Get(respCacheKey(providerID, accountID))
	if !found {
		return nil, nil
	}
	cached, ok := v.(CachedLookup)
	if !ok {
		return nil, nil
	}
	return &cached, nil
}

func (c *MemoryResponseCache) Set(_ context.Context, providerID string, accountID int64, v CachedLookup, ttl time.Duration) error {
	c.store.Set(respCacheKey(providerID, accountID), v, ttl)
	return nil
}

func (c *MemoryResponseCache) Delete(_ context.Context, providerID string, accountID int64) error {
	c.store.Delete(respCacheKey(providerID, accountID))
	return nil
}
