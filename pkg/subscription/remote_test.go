package subscription_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrakit/entitlements/pkg/subscription"
)

func newRemoteTestServer(t *testing.T, hits *atomic.Int64, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "secret-key", r.Header.Get("X-Api-Key"))
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newRemoteProvider(t *testing.T, endpoint string, respCache subscription.ResponseCache, local subscription.LocalStore) *subscription.RemoteProvider {
	t.Helper()

	provider, err := subscription.NewRemoteProvider("remote", subscription.RemoteConfig{
		Endpoint:   endpoint,
		APIKey:     "secret-key",
		Timeout:    time.Second,
		CacheTTL:   time.Minute,
		FlairClass: "pro-subscriber",
	}, respCache, local)
	require.NoError(t, err)
	return provider
}

func TestNewRemoteProvider_Validation(t *testing.T) {
	t.Parallel()

	_, err := subscription.NewRemoteProvider("remote", subscription.RemoteConfig{APIKey: "k"}, nil, nil)
	assert.ErrorIs(t, err, subscription.ErrMissingAPIEndpoint)

	_, err = subscription.NewRemoteProvider("remote", subscription.RemoteConfig{Endpoint: "https://api.example.com"}, nil, nil)
	assert.ErrorIs(t, err, subscription.ErrMissingAPIKey)
}

func TestRemoteProvider_GetSubscription(t *testing.T) {
	t.Parallel()

	t.Run("decodes an active subscription", func(t *testing.T) {
		t.Parallel()

		expires := time.Now().AddDate(0, 1, 0).UTC().Truncate(time.Second)
		var hits atomic.Int64
		srv := newRemoteTestServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/get-user-subscription/7", r.URL.Path)
			fmt.Fprintf(w, `{"status":1,"planId":"pro","planName":"Pro","planPrice":9.99,"subscriptionId":"sub-1","goodThru":%q}`,
				expires.Format(time.RFC3339))
		})

		provider := newRemoteProvider(t, srv.URL, nil, nil)

		rec, err := provider.GetSubscription(context.Background(), 7)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.True(t, rec.Active)
		assert.Equal(t, "pro", rec.PlanID)
		assert.Equal(t, "Pro", rec.PlanName)
		assert.InDelta(t, 9.99, rec.Price, 0.001)
		assert.Equal(t, "sub-1", rec.SubscriptionID)
		require.NotNil(t, rec.Expires)
		assert.True(t, rec.Expires.Equal(expires))
		assert.True(t, provider.HasSubscription(context.Background(), 7))
	})

	t.Run("404 is a confirmed absence", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int64
		srv := newRemoteTestServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		provider := newRemoteProvider(t, srv.URL, nil, nil)

		rec, err := provider.GetSubscription(context.Background(), 7)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("embedded error code is a confirmed absence or failure", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int64
		srv := newRemoteTestServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"errorCode":404,"errorMessage":"no subscription"}`)
		})

		provider := newRemoteProvider(t, srv.URL, nil, nil)
		rec, err := provider.GetSubscription(context.Background(), 7)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("server errors are transient failures", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int64
		srv := newRemoteTestServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		provider := newRemoteProvider(t, srv.URL, nil, nil)

		_, err := provider.GetSubscription(context.Background(), 7)
		assert.ErrorIs(t, err, subscription.ErrProviderUnavailable)
		assert.False(t, provider.HasSubscription(context.Background(), 7), "failures must fail closed")
	})

	t.Run("unreachable endpoint is a transient failure", func(t *testing.T) {
		t.Parallel()

		provider := newRemoteProvider(t, "http://127.0.0.1:1", nil, nil)

		_, err := provider.GetSubscription(context.Background(), 7)
		assert.ErrorIs(t, err, subscription.ErrProviderUnavailable)
	})

	t.Run("invalid account ID makes no network call", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int64
		srv := newRemoteTestServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {})

		provider := newRemoteProvider(t, srv.URL, nil, nil)

		_, err := provider.GetSubscription(context.Background(), 0)
		assert.ErrorIs(t, err, subscription.ErrInvalidAccountID)
		assert.Zero(t, hits.Load())
	})
}

func TestRemoteProvider_ResponseCache(t *testing.T) {
	t.Parallel()

	t.Run("second read is served from cache", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int64
		srv := newRemoteTestServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"status":1,"planId":"pro"}`)
		})

		respCache := subscription.NewMemoryResponseCache(time.Minute)
		provider := newRemoteProvider(t, srv.URL, respCache, nil)

		_, err := provider.GetSubscription(context.Background(), 7)
		require.NoError(t, err)
		rec, err := provider.GetSubscription(context.Background(), 7)
		require.NoError(t, err)
		require.NotNil(t, rec)

		assert.Equal(t, int64(1), hits.Load())
	})

	t.Run("a confirmed absence is cached too", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int64
		srv := newRemoteTestServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		respCache := subscription.NewMemoryResponseCache(time.Minute)
		provider := newRemoteProvider(t, srv.URL, respCache, nil)

		for i := 0; i < 3; i++ {
			rec, err := provider.GetSubscription(context.Background(), 7)
			require.NoError(t, err)
			assert.Nil(t, rec)
		}
		assert.Equal(t, int64(1), hits.Load())
	})

	t.Run("skip cache forces a fresh read", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int64
		srv := newRemoteTestServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"status":1,"planId":"pro"}`)
		})

		respCache := subscription.NewMemoryResponseCache(time.Minute)
		provider := newRemoteProvider(t, srv.URL, respCache, nil)

		_, err := provider.GetSubscription(context.Background(), 7)
		require.NoError(t, err)

		cc := &subscription.CacheControl{}
		cc.SkipCache(true)
		ctx := subscription.WithCacheControl(context.Background(), cc)

		_, err = provider.GetSubscription(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(2), hits.Load())
	})
}

func TestRemoteProvider_LocalOnly(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := newRemoteTestServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":1,"planId":"live"}`)
	})

	local := newFakeStore()
	local.rows[storeKey(7, "remote")] = subscription.Record{Active: true, PlanID: "mirrored"}

	provider := newRemoteProvider(t, srv.URL, nil, local)

	cc := &subscription.CacheControl{}
	cc.LocalOnly(true)
	ctx := subscription.WithCacheControl(context.Background(), cc)

	rec, err := provider.GetSubscription(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "mirrored", rec.PlanID)
	assert.Zero(t, hits.Load(), "local-only reads must never touch the network")

	// Without a mirrored row the read degrades to a transient failure.
	_, err = provider.GetSubscription(ctx, 8)
	assert.ErrorIs(t, err, subscription.ErrNoCachedRecord)
	assert.Zero(t, hits.Load())
}

func TestRemoteProvider_CompedCalls(t *testing.T) {
	t.Parallel()

	t.Run("create and cancel hit the API and invalidate the cache", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int64
		var paths []string
		srv := newRemoteTestServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
			paths = append(paths, r.URL.Path)
			fmt.Fprint(w, `{"code":200,"message":"ok"}`)
		})

		respCache := subscription.NewMemoryResponseCache(time.Minute)
		require.NoError(t, respCache.Set(context.Background(), "remote", 7,
			subscription.CachedLookup{Absent: true}, time.Minute))

		provider := newRemoteProvider(t, srv.URL, respCache, nil)

		require.NoError(t, provider.CreateCompedSubscription(context.Background(), 7, 3))
		require.NoError(t, provider.CancelCompedSubscription(context.Background(), 7))
		assert.Equal(t, []string{"/create-comped-subscription/7/3", "/cancel-comped-subscription/7"}, paths)

		cached, err := respCache.Get(context.Background(), "remote", 7)
		require.NoError(t, err)
		assert.Nil(t, cached, "comp mutations must drop the cached response")
	})

	t.Run("validation happens before any network call", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int64
		srv := newRemoteTestServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {})

		provider := newRemoteProvider(t, srv.URL, nil, nil)

		assert.ErrorIs(t, provider.CreateCompedSubscription(context.Background(), 0, 3), subscription.ErrInvalidAccountID)
		assert.ErrorIs(t, provider.CreateCompedSubscription(context.Background(), 7, 0), subscription.ErrInvalidDuration)
		assert.ErrorIs(t, provider.CancelCompedSubscription(context.Background(), -2), subscription.ErrInvalidAccountID)
		assert.Zero(t, hits.Load())
	})
}
