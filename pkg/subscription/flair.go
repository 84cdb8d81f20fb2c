package subscription

import (
	"context"
	"time"

	"github.com/hydrakit/entitlements/pkg/cache"
)

// FlairCache memoizes flair classes per account so link rendering on every
// page view does not hit providers repeatedly. Lookups degrade silently to
// "no flair"; this surface is end-user facing and never shows an error.
type FlairCache struct {
	service *Service
	classes *cache.LRU[int64, []string]
	ttl     time.Duration
}

// NewFlairCache creates a cache holding flair classes for up to capacity
// accounts, each entry valid for ttl. Panics if service is nil to fail fast
// during initialization.
func NewFlairCache(service *Service, capacity int, ttl time.Duration) *FlairCache {
	if service == nil {
		panic("subscription: Service is required")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &FlairCache{
		service: service,
		classes: cache.NewLRU[int64, []string](capacity),
		ttl:     ttl,
	}
}

// Classes returns the account's flair classes, memoized. Provider calls run
// with LocalOnly set so rendering latency never depends on a remote API.
func (f *FlairCache) Classes(ctx context.Context, accountID int64) []string {
	if accountID < 1 {
		return nil
	}

	if classes, ok := f.classes.Get(accountID); ok {
		return classes
	}

	cc := &CacheControl{}
	cc.LocalOnly(true)
	ctx = WithCacheControl(ctx, cc)

	classes := f.service.FlairClasses(ctx, accountID)
	f.classes.SetTTL(accountID, classes, f.ttl)
	return classes
}

// Invalidate drops the memoized classes for an account, forcing the next
// Classes call to resolve afresh.
func (f *FlairCache) Invalidate(accountID int64) {
	f.classes.Remove(accountID)
}
