package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisResponseCache is a ResponseCache shared across processes, so every
// worker sees the same remembered provider responses.
type RedisResponseCache struct {
	client redis.UniversalClient
}

// NewRedisResponseCache creates a response cache over an established Redis
// client. Panics if client is nil to fail fast during initialization.
func NewRedisResponseCache(client redis.UniversalClient) *RedisResponseCache {
	if client == nil {
		panic("subscription: redis client is required")
	}
	return &RedisResponseCache{client: client}
}

func (c *RedisResponseCache) Get(ctx context.Context, providerID string, accountID int64) (*CachedLookup, error) {
	body, err := c.client.Get(ctx, respCacheKey(providerID, accountID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached subscription response: %w", err)
	}

	var cached CachedLookup
	if err := json.Unmarshal(body, &cached); err != nil {
		// A corrupt entry is indistinguishable from a miss for callers.
		return nil, nil
	}
	return &cached, nil
}

func (c *RedisResponseCache) Set(ctx context.Context, providerID string, accountID int64, v CachedLookup, ttl time.Duration) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription response: %w", err)
	}
	if err := c.client.Set(ctx, respCacheKey(providerID, accountID), body, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache subscription response: %w", err)
	}
	return nil
}

func (c *RedisResponseCache) Delete(ctx context.Context, providerID string, accountID int64) error {
	if err := c.client.Del(ctx, respCacheKey(providerID, accountID)).Err(); err != nil {
		return fmt.Errorf("failed to drop cached subscription response: %w", err)
	}
	return nil
}
