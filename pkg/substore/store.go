package substore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hydrakit/entitlements/pkg/subscription"
)

// DB is the connection surface the store needs. *pgxpool.Pool satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements subscription.LocalStore over PostgreSQL, plus the
// administrative listing and statistics queries.
type Store struct {
	db        DB
	directory subscription.AccountDirectory
	log       *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Store. The directory resolves display names for the listing
// and the registered-account total for statistics. Panics if db or directory
// is nil to fail fast during initialization.
func New(db DB, directory subscription.AccountDirectory, opts ...Option) *Store {
	if db == nil {
		panic("substore: DB is required")
	}
	if directory == nil {
		panic("substore: AccountDirectory is required")
	}

	s := &Store{
		db:        db,
		directory: directory,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert writes the last-known-good provider response for one key. A nil rec
// deletes the row: the provider confirmed no subscription, stop caching it.
// The existence check and the write run inside one transaction so two
// concurrent refreshes for the same key cannot produce duplicate rows;
// last writer wins.
func (s *Store) Upsert(ctx context.Context, accountID int64, providerID string, rec *subscription.Record) error {
	if accountID < 1 {
		return subscription.ErrInvalidAccountID
	}
	if providerID == "" {
		return ErrEmptyProviderID
	}

	if rec == nil {
		if _, err := s.db.Exec(ctx,
			`DELETE FROM subscription WHERE account_id = $1 AND provider_id = $2`,
			accountID, providerID,
		); err != nil {
			return fmt.Errorf("failed to delete subscription row: %w", err)
		}
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var sid int64
	err = tx.QueryRow(ctx,
		`SELECT sid FROM subscription WHERE account_id = $1 AND provider_id = $2 FOR UPDATE`,
		accountID, providerID,
	).Scan(&sid)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx,
			`INSERT INTO subscription (account_id, provider_id, active, begins, expires, plan_id, plan_name, price, subscription_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			accountID, providerID, rec.Active, rec.Begins, rec.Expires,
			rec.PlanID, rec.PlanName, rec.Price, rec.SubscriptionID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert subscription row: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to check for existing subscription row: %w", err)
	default:
		_, err = tx.Exec(ctx,
			`UPDATE subscription
			 SET active = $1, begins = $2, expires = $3, plan_id = $4, plan_name = $5, price = $6, subscription_id = $7
			 WHERE sid = $8`,
			rec.Active, rec.Begins, rec.Expires, rec.PlanID, rec.PlanName,
			rec.Price, rec.SubscriptionID, sid,
		)
		if err != nil {
			return fmt.Errorf("failed to update subscription row: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit subscription upsert: %w", err)
	}
	return nil
}

// Lookup returns the mirrored record for one key, or ErrNoCachedRecord when
// nothing is stored.
func (s *Store) Lookup(ctx context.Context, accountID int64, providerID string) (*subscription.Record, error) {
	if accountID < 1 {
		return nil, subscription.ErrInvalidAccountID
	}
	if providerID == "" {
		return nil, ErrEmptyProviderID
	}

	var rec subscription.Record
	err := s.db.QueryRow(ctx,
		`SELECT active, begins, expires, plan_id, plan_name, price, subscription_id
		 FROM subscription WHERE account_id = $1 AND provider_id = $2`,
		accountID, providerID,
	).Scan(&rec.Active, &rec.Begins, &rec.Expires, &rec.PlanID, &rec.PlanName, &rec.Price, &rec.SubscriptionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subscription.ErrNoCachedRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read subscription row: %w", err)
	}
	return &rec, nil
}

// AccountIDs returns every account with at least one mirrored row, in
// ascending order. The bulk refresh enqueue walks this list.
func (s *Store) AccountIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT account_id FROM subscription ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribed accounts: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list subscribed accounts: %w", err)
	}
	return ids, nil
}

// Statistics summarizes active subscriptions against the registered account
// population.
type Statistics struct {
	Active     int64
	Total      int64
	Percentage float64
}

// Statistics counts active mirrored rows against the directory's account
// total. The percentage is 0 when no accounts exist.
func (s *Store) Statistics(ctx context.Context) (*Statistics, error) {
	var stats Statistics
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM subscription WHERE active`,
	).Scan(&stats.Active); err != nil {
		return nil, fmt.Errorf("failed to count active subscriptions: %w", err)
	}

	total, err := s.directory.Total(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}
	stats.Total = total

	if stats.Total > 0 {
		stats.Percentage = float64(stats.Active) / float64(stats.Total) * 100
	}
	return &stats, nil
}
