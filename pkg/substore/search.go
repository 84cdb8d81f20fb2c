package substore

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/hydrakit/entitlements/pkg/subscription"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// SearchQuery describes one administrative listing request.
type SearchQuery struct {
	Offset    uint64
	Limit     uint64
	Term      string // matched against account display names via the directory
	Providers []string
	Plans     []string
	MinPrice  *float64
	MaxPrice  *float64
	MinDate   *time.Time
	MaxDate   *time.Time
	SortField string // defaults to sid
	SortDesc  bool
}

var sortableFields = map[string]struct{}{
	"sid":             {},
	"account_id":      {},
	"provider_id":     {},
	"active":          {},
	"begins":          {},
	"expires":         {},
	"plan_id":         {},
	"plan_name":       {},
	"price":           {},
	"subscription_id": {},
}

// Row is one listing entry with the account's display name resolved.
type Row struct {
	SID         int64
	AccountID   int64
	ProviderID  string
	DisplayName string
	subscription.Record
}

// SearchResult carries one page of rows plus the total matched count, so the
// caller can render "page N of M" without a second round trip.
type SearchResult struct {
	Rows  []Row
	Total int64
}

// searchConditions translates the query filters into a WHERE conjunction.
// termSearched distinguishes "no term given" from "term matched nobody": the
// latter must yield zero rows.
func searchConditions(q SearchQuery, accountIDs []int64, termSearched bool) sq.And {
	var and sq.And
	if termSearched {
		if len(accountIDs) == 0 {
			and = append(and, sq.Eq{"account_id": -2})
		} else {
			and = append(and, sq.Eq{"account_id": accountIDs})
		}
	}
	if len(q.Providers) > 0 {
		and = append(and, sq.Eq{"provider_id": q.Providers})
	}
	if len(q.Plans) > 0 {
		and = append(and, sq.Eq{"plan_name": q.Plans})
	}
	if q.MinPrice != nil {
		and = append(and, sq.GtOrEq{"price": *q.MinPrice})
	}
	if q.MaxPrice != nil {
		and = append(and, sq.LtOrEq{"price": *q.MaxPrice})
	}
	if q.MinDate != nil {
		and = append(and, sq.GtOrEq{"begins": *q.MinDate})
	}
	if q.MaxDate != nil {
		and = append(and, sq.LtOrEq{"expires": *q.MaxDate})
	}
	return and
}

// Search returns a filtered, paginated listing of mirrored subscriptions.
func (s *Store) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	sortField := q.SortField
	if sortField == "" {
		sortField = "sid"
	}
	if _, ok := sortableFields[sortField]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSort, sortField)
	}
	direction := "ASC"
	if q.SortDesc {
		direction = "DESC"
	}

	var accountIDs []int64
	termSearched := q.Term != ""
	if termSearched {
		ids, err := s.directory.SearchIDs(ctx, q.Term)
		if err != nil {
			return nil, fmt.Errorf("failed to search accounts by name: %w", err)
		}
		accountIDs = ids
	}

	conditions := searchConditions(q, accountIDs, termSearched)

	builder := psql.
		Select("sid", "account_id", "provider_id", "active", "begins", "expires",
			"plan_id", "plan_name", "price", "subscription_id").
		From("subscription").
		OrderBy(sortField + " " + direction).
		Offset(q.Offset)
	if q.Limit > 0 {
		builder = builder.Limit(q.Limit)
	}
	if len(conditions) > 0 {
		builder = builder.Where(conditions)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build search query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run search query: %w", err)
	}
	defer rows.Close()

	result := &SearchResult{}
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.SID, &row.AccountID, &row.ProviderID, &row.Active,
			&row.Begins, &row.Expires, &row.PlanID, &row.PlanName, &row.Price,
			&row.SubscriptionID); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search rows: %w", err)
	}

	countBuilder := psql.Select("COUNT(*)").From("subscription")
	if len(conditions) > 0 {
		countBuilder = countBuilder.Where(conditions)
	}
	countQuery, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build count query: %w", err)
	}
	if err := s.db.QueryRow(ctx, countQuery, countArgs...).Scan(&result.Total); err != nil {
		return nil, fmt.Errorf("failed to count search results: %w", err)
	}

	for i := range result.Rows {
		name, err := s.directory.DisplayName(ctx, result.Rows[i].AccountID)
		if err != nil {
			// A row whose account vanished still lists, just without a name.
			continue
		}
		result.Rows[i].DisplayName = name
	}

	return result, nil
}

// FilterBounds holds the values available for building listing filters: the
// distinct providers and plans present, and the observed date and price
// extremes.
type FilterBounds struct {
	Providers []string
	Plans     []string
	MinDate   *time.Time
	MaxDate   *time.Time
	MinPrice  *float64
	MaxPrice  *float64
}

// FilterBounds inspects the mirrored rows and returns the available filter
// values.
func (s *Store) FilterBounds(ctx context.Context) (*FilterBounds, error) {
	rows, err := s.db.Query(ctx,
		`SELECT provider_id, plan_name, MIN(begins), MAX(expires), MIN(price), MAX(price)
		 FROM subscription
		 GROUP BY provider_id, plan_name
		 ORDER BY provider_id, plan_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to read filter bounds: %w", err)
	}
	defer rows.Close()

	bounds := &FilterBounds{}
	seenProviders := make(map[string]struct{})
	seenPlans := make(map[string]struct{})

	for rows.Next() {
		var (
			providerID, planName string
			minDate, maxDate     *time.Time
			minPrice, maxPrice   *float64
		)
		if err := rows.Scan(&providerID, &planName, &minDate, &maxDate, &minPrice, &maxPrice); err != nil {
			return nil, fmt.Errorf("failed to scan filter bounds: %w", err)
		}

		if _, seen := seenProviders[providerID]; !seen && providerID != "" {
			seenProviders[providerID] = struct{}{}
			bounds.Providers = append(bounds.Providers, providerID)
		}
		if _, seen := seenPlans[planName]; !seen && planName != "" {
			seenPlans[planName] = struct{}{}
			bounds.Plans = append(bounds.Plans, planName)
		}

		if minDate != nil && (bounds.MinDate == nil || minDate.Before(*bounds.MinDate)) {
			bounds.MinDate = minDate
		}
		if maxDate != nil && (bounds.MaxDate == nil || maxDate.After(*bounds.MaxDate)) {
			bounds.MaxDate = maxDate
		}
		if minPrice != nil && (bounds.MinPrice == nil || *minPrice < *bounds.MinPrice) {
			bounds.MinPrice = minPrice
		}
		if maxPrice != nil && (bounds.MaxPrice == nil || *maxPrice > *bounds.MaxPrice) {
			bounds.MaxPrice = maxPrice
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read filter bounds: %w", err)
	}
	return bounds, nil
}

// Clamp forces the query's range filters inside the bounds, so user-supplied
// values cannot widen the range past what actually exists.
func (b *FilterBounds) Clamp(q *SearchQuery) {
	if b.MinPrice != nil {
		if q.MinPrice == nil || *q.MinPrice < *b.MinPrice {
			q.MinPrice = b.MinPrice
		}
	}
	if b.MaxPrice != nil {
		if q.MaxPrice == nil || *q.MaxPrice > *b.MaxPrice {
			q.MaxPrice = b.MaxPrice
		}
	}
	if b.MinDate != nil {
		if q.MinDate == nil || q.MinDate.Before(*b.MinDate) {
			q.MinDate = b.MinDate
		}
	}
	if b.MaxDate != nil {
		if q.MaxDate == nil || q.MaxDate.After(*b.MaxDate) {
			q.MaxDate = b.MaxDate
		}
	}
}
