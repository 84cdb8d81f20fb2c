package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrakit/entitlements/pkg/subscription"
)

func newGrantor(t *testing.T, provider *fakeProvider) *subscription.Grantor {
	t.Helper()

	registry := newTestRegistry(t, "comped", map[string]*fakeProvider{"comped": provider}, "comped")
	directory := newFakeDirectory(map[int64]string{7: "Alice", 42: "Bob"})
	return subscription.NewGrantor(registry, directory)
}

func TestGrantor_Grant(t *testing.T) {
	t.Parallel()

	t.Run("grants and verifies", func(t *testing.T) {
		t.Parallel()

		grantor := newGrantor(t, &fakeProvider{})

		rec, err := grantor.Grant(context.Background(), "Alice", "", 3, false)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.True(t, rec.Active)
		assert.Equal(t, subscription.PlanComplimentary, rec.PlanID)
		require.NotNil(t, rec.Expires)
		assert.WithinDuration(t, time.Now().AddDate(0, 3, 0), *rec.Expires, time.Minute)
	})

	t.Run("existing comp requires overwrite", func(t *testing.T) {
		t.Parallel()

		provider := &fakeProvider{rec: activeRecord("pro")}
		grantor := newGrantor(t, provider)

		_, err := grantor.Grant(context.Background(), "Alice", "", 3, false)
		assert.ErrorIs(t, err, subscription.ErrAlreadyComped)

		rec, err := grantor.Grant(context.Background(), "Alice", "", 3, true)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, subscription.PlanComplimentary, rec.PlanID)
	})

	t.Run("duration bounds", func(t *testing.T) {
		t.Parallel()

		grantor := newGrantor(t, &fakeProvider{})

		_, err := grantor.Grant(context.Background(), "Alice", "", 0, false)
		assert.ErrorIs(t, err, subscription.ErrInvalidDuration)

		_, err = grantor.Grant(context.Background(), "Alice", "", subscription.MaxCompMonths+1, false)
		assert.ErrorIs(t, err, subscription.ErrInvalidDuration)

		_, err = grantor.Grant(context.Background(), "Alice", "", subscription.MaxCompMonths, false)
		assert.NoError(t, err)
	})

	t.Run("unknown account name", func(t *testing.T) {
		t.Parallel()

		grantor := newGrantor(t, &fakeProvider{})

		_, err := grantor.Grant(context.Background(), "Mallory", "", 3, false)
		assert.ErrorIs(t, err, subscription.ErrAccountNotFound)
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()

		grantor := newGrantor(t, &fakeProvider{})

		_, err := grantor.Grant(context.Background(), "Alice", "nope", 3, false)
		assert.ErrorIs(t, err, subscription.ErrProviderNotConfigured)
	})
}

func TestGrantor_Cancel(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{rec: activeRecord("pro")}
	grantor := newGrantor(t, provider)

	require.NoError(t, grantor.Cancel(context.Background(), "Alice", ""))
	assert.False(t, provider.HasSubscription(context.Background(), 7))

	assert.ErrorIs(t, grantor.Cancel(context.Background(), "Mallory", ""), subscription.ErrAccountNotFound)
}
