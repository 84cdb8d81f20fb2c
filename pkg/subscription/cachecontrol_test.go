package subscription_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrakit/entitlements/pkg/subscription"
)

func TestCacheControl_ReadModifyReturn(t *testing.T) {
	t.Parallel()

	t.Run("set returns previous value", func(t *testing.T) {
		t.Parallel()

		cc := &subscription.CacheControl{}

		assert.False(t, cc.SkipCache(true), "first set must return the prior default")
		assert.True(t, cc.SkipCache(), "no-arg call reads without modifying")
		assert.True(t, cc.SkipCache(false))
		assert.False(t, cc.SkipCache())
	})

	t.Run("flags are independent", func(t *testing.T) {
		t.Parallel()

		cc := &subscription.CacheControl{}
		cc.SkipCache(true)

		assert.False(t, cc.LocalOnly())
		cc.LocalOnly(true)
		assert.True(t, cc.SkipCache())
		assert.True(t, cc.LocalOnly())
	})

	t.Run("scoped save and restore", func(t *testing.T) {
		t.Parallel()

		cc := &subscription.CacheControl{}
		cc.SkipCache(true)

		prev := cc.SkipCache(false)
		assert.True(t, prev)
		cc.SkipCache(prev)
		assert.True(t, cc.SkipCache())
	})
}

func TestCacheControl_Context(t *testing.T) {
	t.Parallel()

	t.Run("attached control is shared through the chain", func(t *testing.T) {
		t.Parallel()

		cc := &subscription.CacheControl{}
		ctx := subscription.WithCacheControl(context.Background(), cc)

		cc.SkipCache(true)
		assert.True(t, subscription.CacheControlFromContext(ctx).SkipCache())
	})

	t.Run("nil attaches a fresh control", func(t *testing.T) {
		t.Parallel()

		ctx := subscription.WithCacheControl(context.Background(), nil)
		got := subscription.CacheControlFromContext(ctx)
		require.NotNil(t, got)
		assert.False(t, got.SkipCache())
		assert.False(t, got.LocalOnly())
	})

	t.Run("bare context reads default flags", func(t *testing.T) {
		t.Parallel()

		got := subscription.CacheControlFromContext(context.Background())
		require.NotNil(t, got)
		assert.False(t, got.SkipCache())
		assert.False(t, got.LocalOnly())
	})

	t.Run("concurrent operations are isolated", func(t *testing.T) {
		t.Parallel()

		a := &subscription.CacheControl{}
		b := &subscription.CacheControl{}
		ctxA := subscription.WithCacheControl(context.Background(), a)
		ctxB := subscription.WithCacheControl(context.Background(), b)

		a.SkipCache(true)
		assert.True(t, subscription.CacheControlFromContext(ctxA).SkipCache())
		assert.False(t, subscription.CacheControlFromContext(ctxB).SkipCache())
	})
}
