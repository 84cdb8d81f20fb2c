package substore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hydrakit/entitlements/pkg/subscription"
)

// Directory implements subscription.AccountDirectory over the host's account
// table. The table is owned by the host identity system; this adapter only
// reads it.
type Directory struct {
	db DB
}

// NewDirectory creates a Directory. Panics if db is nil to fail fast during
// initialization.
func NewDirectory(db DB) *Directory {
	if db == nil {
		panic("substore: DB is required")
	}
	return &Directory{db: db}
}

// DisplayName returns the account's display name.
func (d *Directory) DisplayName(ctx context.Context, accountID int64) (string, error) {
	if accountID < 1 {
		return "", subscription.ErrInvalidAccountID
	}

	var name string
	err := d.db.QueryRow(ctx,
		`SELECT account_name FROM account WHERE account_id = $1`, accountID,
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", subscription.ErrAccountNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve account %d: %w", accountID, err)
	}
	return name, nil
}

// IDByName resolves a display name to an account ID.
func (d *Directory) IDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := d.db.QueryRow(ctx,
		`SELECT account_id FROM account WHERE account_name = $1`, name,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, subscription.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve account %q: %w", name, err)
	}
	return id, nil
}

// IsRegistered reports whether the account currently exists.
func (d *Directory) IsRegistered(ctx context.Context, accountID int64) (bool, error) {
	if accountID < 1 {
		return false, nil
	}

	var exists bool
	if err := d.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM account WHERE account_id = $1)`, accountID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check account %d: %w", accountID, err)
	}
	return exists, nil
}

// SearchIDs returns the IDs of accounts whose display name contains the term,
// case-insensitively.
func (d *Directory) SearchIDs(ctx context.Context, term string) ([]int64, error) {
	rows, err := d.db.Query(ctx,
		`SELECT account_id FROM account WHERE account_name ILIKE '%' || $1 || '%' ORDER BY account_id`,
		term)
	if err != nil {
		return nil, fmt.Errorf("failed to search accounts: %w", err)
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
		return nil, fmt.Errorf("failed to search accounts: %w", err)
	}
	return ids, nil
}

// Total returns the number of registered accounts.
func (d *Directory) Total(ctx context.Context) (int64, error) {
	var total int64
	if err := d.db.QueryRow(ctx, `SELECT COUNT(*) FROM account`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return total, nil
}
