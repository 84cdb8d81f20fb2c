package subscription

import (
	"context"
	"sync"
)

// CacheControl alters provider read behavior for the duration of one logical
// operation. It is carried through the context so that every provider call in
// the chain sees the same flags without any shared global state; concurrent
// operations each attach their own control.
//
// Both flags are read-modify-return: calling with no argument reads the
// current value, calling with a value sets it and returns the previous one,
// so a scoped save/restore sequence is
//
//	prev := cc.SkipCache(true)
//	defer cc.SkipCache(prev)
type CacheControl struct {
	mu        sync.Mutex
	skipCache bool
	localOnly bool
}

// SkipCache controls whether providers bypass their response cache and always
// attempt a fresh source read (still subject to LocalOnly).
func (c *CacheControl) SkipCache(v ...bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.skipCache
	if len(v) > 0 {
		c.skipCache = v[0]
	}
	return prev
}

// LocalOnly controls whether providers are forbidden from outbound network
// calls. With no cached value available a provider then reports a transient
// failure rather than blocking on the network.
func (c *CacheControl) LocalOnly(v ...bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.localOnly
	if len(v) > 0 {
		c.localOnly = v[0]
	}
	return prev
}

type cacheControlCtxKey struct{}

// WithCacheControl returns a context carrying cc. A nil cc attaches a fresh
// control. The same control is seen by every provider call made with the
// returned context.
func WithCacheControl(ctx context.Context, cc *CacheControl) context.Context {
	if cc == nil {
		cc = &CacheControl{}
	}
	return context.WithValue(ctx, cacheControlCtxKey{}, cc)
}

// CacheControlFromContext returns the control attached to ctx. When none is
// attached it returns a fresh control with default (false) flags; mutations
// on such a detached control do not propagate anywhere.
func CacheControlFromContext(ctx context.Context) *CacheControl {
	if cc, ok := ctx.Value(cacheControlCtxKey{}).(*CacheControl); ok {
		return cc
	}
	return &CacheControl{}
}
