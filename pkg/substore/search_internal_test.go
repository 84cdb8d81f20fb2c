package substore

import (
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64    { return &v }
func timePtr(v time.Time) *time.Time { return &v }

func whereSQL(t *testing.T, and sq.And) (string, []any) {
	t.Helper()

	query, args, err := psql.Select("sid").From("subscription").Where(and).ToSql()
	require.NoError(t, err)
	return query, args
}

func TestSearchConditions(t *testing.T) {
	t.Parallel()

	t.Run("price range", func(t *testing.T) {
		t.Parallel()

		and := searchConditions(SearchQuery{
			MinPrice: floatPtr(5.00),
			MaxPrice: floatPtr(20.00),
		}, nil, false)

		query, args := whereSQL(t, and)
		assert.Contains(t, query, "price >= $1")
		assert.Contains(t, query, "price <= $2")
		// A row priced 3.00 fails the first predicate; 9.99 passes both.
		assert.Equal(t, []any{5.00, 20.00}, args)
	})

	t.Run("date range maps to begins and expires", func(t *testing.T) {
		t.Parallel()

		min := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		max := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		and := searchConditions(SearchQuery{MinDate: timePtr(min), MaxDate: timePtr(max)}, nil, false)

		query, args := whereSQL(t, and)
		assert.Contains(t, query, "begins >= $1")
		assert.Contains(t, query, "expires <= $2")
		assert.Equal(t, []any{min, max}, args)
	})

	t.Run("provider and plan sets", func(t *testing.T) {
		t.Parallel()

		and := searchConditions(SearchQuery{
			Providers: []string{"remote", "comped"},
			Plans:     []string{"Pro"},
		}, nil, false)

		query, args := whereSQL(t, and)
		assert.Contains(t, query, "provider_id IN ($1,$2)")
		assert.Contains(t, query, "plan_name IN ($3)")
		assert.Equal(t, []any{"remote", "comped", "Pro"}, args)
	})

	t.Run("term matching accounts restricts by ID", func(t *testing.T) {
		t.Parallel()

		and := searchConditions(SearchQuery{Term: "ali"}, []int64{7, 9}, true)

		query, args := whereSQL(t, and)
		assert.Contains(t, query, "account_id IN ($1,$2)")
		assert.Equal(t, []any{int64(7), int64(9)}, args)
	})

	t.Run("term matching nobody yields zero rows", func(t *testing.T) {
		t.Parallel()

		and := searchConditions(SearchQuery{Term: "nobody"}, nil, true)

		query, args := whereSQL(t, and)
		assert.Contains(t, query, "account_id = $1")
		assert.Equal(t, []any{-2}, args)
	})

	t.Run("no filters means no conditions", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, searchConditions(SearchQuery{}, nil, false))
	})
}

func TestFilterBounds_Clamp(t *testing.T) {
	t.Parallel()

	minDate := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	maxDate := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bounds := &FilterBounds{
		MinPrice: floatPtr(4.99),
		MaxPrice: floatPtr(29.99),
		MinDate:  timePtr(minDate),
		MaxDate:  timePtr(maxDate),
	}

	t.Run("out-of-bound values are pulled inside", func(t *testing.T) {
		t.Parallel()

		q := SearchQuery{
			MinPrice: floatPtr(0.01),
			MaxPrice: floatPtr(999),
			MinDate:  timePtr(minDate.AddDate(-1, 0, 0)),
			MaxDate:  timePtr(maxDate.AddDate(1, 0, 0)),
		}
		bounds.Clamp(&q)

		assert.Equal(t, 4.99, *q.MinPrice)
		assert.Equal(t, 29.99, *q.MaxPrice)
		assert.Equal(t, minDate, *q.MinDate)
		assert.Equal(t, maxDate, *q.MaxDate)
	})

	t.Run("in-bound values are kept", func(t *testing.T) {
		t.Parallel()

		q := SearchQuery{MinPrice: floatPtr(10), MaxPrice: floatPtr(20)}
		bounds.Clamp(&q)

		assert.Equal(t, 10.0, *q.MinPrice)
		assert.Equal(t, 20.0, *q.MaxPrice)
	})

	t.Run("missing values default to the bounds", func(t *testing.T) {
		t.Parallel()

		q := SearchQuery{}
		bounds.Clamp(&q)

		assert.Equal(t, 4.99, *q.MinPrice)
		assert.Equal(t, 29.99, *q.MaxPrice)
		assert.Equal(t, minDate, *q.MinDate)
		assert.Equal(t, maxDate, *q.MaxDate)
	})
}
