package substore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hydrakit/entitlements/pkg/subscription"
)

// PrefStore implements subscription.PreferenceStore over the
// account_preference table.
type PrefStore struct {
	db DB
}

// NewPrefStore creates a PrefStore. Panics if db is nil to fail fast during
// initialization.
func NewPrefStore(db DB) *PrefStore {
	if db == nil {
		panic("substore: DB is required")
	}
	return &PrefStore{db: db}
}

// Get returns the stored value, or "" when the key is unset.
func (p *PrefStore) Get(ctx context.Context, accountID int64, key string) (string, error) {
	if accountID < 1 {
		return "", subscription.ErrInvalidAccountID
	}

	var value string
	err := p.db.QueryRow(ctx,
		`SELECT pref_value FROM account_preference WHERE account_id = $1 AND pref_key = $2`,
		accountID, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read preference %q: %w", key, err)
	}
	return value, nil
}

// Set stores the value, replacing any previous one. An empty value clears the
// key.
func (p *PrefStore) Set(ctx context.Context, accountID int64, key, value string) error {
	if accountID < 1 {
		return subscription.ErrInvalidAccountID
	}

	if value == "" {
		if _, err := p.db.Exec(ctx,
			`DELETE FROM account_preference WHERE account_id = $1 AND pref_key = $2`,
			accountID, key,
		); err != nil {
			return fmt.Errorf("failed to clear preference %q: %w", key, err)
		}
		return nil
	}

	if _, err := p.db.Exec(ctx,
		`INSERT INTO account_preference (account_id, pref_key, pref_value)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (account_id, pref_key) DO UPDATE SET pref_value = EXCLUDED.pref_value`,
		accountID, key, value,
	); err != nil {
		return fmt.Errorf("failed to store preference %q: %w", key, err)
	}
	return nil
}
