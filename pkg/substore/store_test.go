package substore_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrakit/entitlements/pkg/subscription"
	"github.com/hydrakit/entitlements/pkg/substore"
)

type stubDirectory struct {
	names map[int64]string
	total int64
}

func (d *stubDirectory) DisplayName(_ context.Context, accountID int64) (string, error) {
	name, ok := d.names[accountID]
	if !ok {
		return "", subscription.ErrAccountNotFound
	}
	return name, nil
}

func (d *stubDirectory) IDByName(_ context.Context, name string) (int64, error) {
	for id, n := range d.names {
		if n == name {
			return id, nil
		}
	}
	return 0, subscription.ErrAccountNotFound
}

func (d *stubDirectory) IsRegistered(_ context.Context, accountID int64) (bool, error) {
	_, ok := d.names[accountID]
	return ok, nil
}

func (d *stubDirectory) SearchIDs(_ context.Context, term string) ([]int64, error) {
	var ids []int64
	for id, n := range d.names {
		if n == term {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (d *stubDirectory) Total(_ context.Context) (int64, error) {
	return d.total, nil
}

func newMockedStore(t *testing.T) (*substore.Store, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	directory := &stubDirectory{names: map[int64]string{7: "Alice"}, total: 200}
	return substore.New(mock, directory), mock
}

func TestStore_Upsert(t *testing.T) {
	t.Parallel()

	rec := &subscription.Record{
		Active:         true,
		PlanID:         "pro",
		PlanName:       "Pro",
		Price:          9.99,
		SubscriptionID: "sub-1",
	}

	t.Run("inserts when no row exists", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockedStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT sid FROM subscription").
			WithArgs(int64(7), "remote").
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectExec("INSERT INTO subscription").
			WithArgs(int64(7), "remote", rec.Active, rec.Begins, rec.Expires,
				rec.PlanID, rec.PlanName, rec.Price, rec.SubscriptionID).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()
		mock.ExpectRollback()

		require.NoError(t, store.Upsert(context.Background(), 7, "remote", rec))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("updates the existing row in place", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockedStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT sid FROM subscription").
			WithArgs(int64(7), "remote").
			WillReturnRows(pgxmock.NewRows([]string{"sid"}).AddRow(int64(33)))
		mock.ExpectExec("UPDATE subscription").
			WithArgs(rec.Active, rec.Begins, rec.Expires, rec.PlanID, rec.PlanName,
				rec.Price, rec.SubscriptionID, int64(33)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()
		mock.ExpectRollback()

		require.NoError(t, store.Upsert(context.Background(), 7, "remote", rec))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil record deletes the row", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockedStore(t)

		mock.ExpectExec("DELETE FROM subscription").
			WithArgs(int64(7), "remote").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, store.Upsert(context.Background(), 7, "remote", nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("validates input before touching the database", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockedStore(t)

		assert.ErrorIs(t, store.Upsert(context.Background(), 0, "remote", rec), subscription.ErrInvalidAccountID)
		assert.ErrorIs(t, store.Upsert(context.Background(), 7, "", rec), substore.ErrEmptyProviderID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_Lookup(t *testing.T) {
	t.Parallel()

	t.Run("returns the mirrored record", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockedStore(t)

		expires := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		mock.ExpectQuery("SELECT active, begins, expires, plan_id, plan_name, price, subscription_id").
			WithArgs(int64(7), "remote").
			WillReturnRows(pgxmock.NewRows(
				[]string{"active", "begins", "expires", "plan_id", "plan_name", "price", "subscription_id"}).
				AddRow(true, nil, &expires, "pro", "Pro", 9.99, "sub-1"))

		rec, err := store.Lookup(context.Background(), 7, "remote")
		require.NoError(t, err)
		assert.True(t, rec.Active)
		assert.Nil(t, rec.Begins)
		require.NotNil(t, rec.Expires)
		assert.True(t, rec.Expires.Equal(expires))
		assert.Equal(t, "pro", rec.PlanID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockedStore(t)

		mock.ExpectQuery("SELECT active, begins, expires, plan_id, plan_name, price, subscription_id").
			WithArgs(int64(7), "remote").
			WillReturnError(pgx.ErrNoRows)

		_, err := store.Lookup(context.Background(), 7, "remote")
		assert.ErrorIs(t, err, subscription.ErrNoCachedRecord)
	})
}

func TestStore_Statistics(t *testing.T) {
	t.Parallel()

	t.Run("computes the percentage", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockedStore(t)

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM subscription WHERE active`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(50)))

		stats, err := store.Statistics(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(50), stats.Active)
		assert.Equal(t, int64(200), stats.Total)
		assert.InDelta(t, 25.0, stats.Percentage, 0.001)
	})

	t.Run("guards against an empty directory", func(t *testing.T) {
		t.Parallel()

		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		t.Cleanup(mock.Close)

		store := substore.New(mock, &stubDirectory{})
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM subscription WHERE active`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))

		stats, err := store.Statistics(context.Background())
		require.NoError(t, err)
		assert.Zero(t, stats.Percentage)
	})
}

func TestStore_AccountIDs(t *testing.T) {
	t.Parallel()

	store, mock := newMockedStore(t)

	mock.ExpectQuery("SELECT DISTINCT account_id FROM subscription").
		WillReturnRows(pgxmock.NewRows([]string{"account_id"}).
			AddRow(int64(3)).AddRow(int64(7)).AddRow(int64(42)))

	ids, err := store.AccountIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7, 42}, ids)
}
