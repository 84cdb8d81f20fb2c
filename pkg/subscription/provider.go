package subscription

import (
	"context"
	"time"
)

// Provider is the contract every entitlement source satisfies. Implementations
// validate accountID >= 1 (and months >= 1) and fail fast without touching
// their backend on invalid input.
type Provider interface {
	// HasSubscription reports whether the account currently holds an active
	// subscription with this provider. Fails closed: any error or invalid
	// input yields false.
	HasSubscription(ctx context.Context, accountID int64) bool

	// GetSubscription resolves the account's subscription state.
	// Returns (rec, nil) with data, (nil, nil) on confirmed absence, and
	// (nil, err) on transient failure. Callers must never treat a transient
	// failure as absence.
	GetSubscription(ctx context.Context, accountID int64) (*Record, error)

	// CreateCompedSubscription grants a manually issued subscription expiring
	// months from now. The expiry is absolute, not additive: granting again
	// replaces the previous expiry. Providers without comp support return
	// ErrCompNotSupported.
	CreateCompedSubscription(ctx context.Context, accountID int64, months int) error

	// CancelCompedSubscription revokes a manually issued subscription
	// immediately.
	CancelCompedSubscription(ctx context.Context, accountID int64) error

	// FlairClass returns the cosmetic marker shown next to subscribed
	// accounts, or "" when this provider carries no flair.
	FlairClass() string

	// CacheDuration suggests how long this provider's responses may be
	// cached.
	CacheDuration() time.Duration
}

// LocalStore is the persisted mirror of last-known-good provider responses,
// keyed by (accountID, providerID).
type LocalStore interface {
	// Upsert writes the record for the key. A nil rec deletes the row: the
	// provider confirmed no subscription, stop caching it.
	Upsert(ctx context.Context, accountID int64, providerID string, rec *Record) error

	// Lookup returns the cached record for the key, or ErrNoCachedRecord
	// when none is stored.
	Lookup(ctx context.Context, accountID int64, providerID string) (*Record, error)
}

// AccountDirectory resolves account identity through the host system. The
// core never creates or deletes accounts.
type AccountDirectory interface {
	// DisplayName returns the human-readable name for an account ID.
	DisplayName(ctx context.Context, accountID int64) (string, error)

	// IDByName resolves a display name to an account ID.
	// Returns ErrAccountNotFound when no such account exists.
	IDByName(ctx context.Context, name string) (int64, error)

	// IsRegistered reports whether the ID corresponds to a currently
	// registered account.
	IsRegistered(ctx context.Context, accountID int64) (bool, error)

	// SearchIDs returns the IDs of accounts whose display name matches the
	// term.
	SearchIDs(ctx context.Context, term string) ([]int64, error)

	// Total returns the number of registered accounts.
	Total(ctx context.Context) (int64, error)
}

// PreferenceStore is a per-account key-value store owned by the host system.
// The comped provider persists expiry through it instead of a dedicated table.
type PreferenceStore interface {
	// Get returns the stored value, or "" when the key is unset.
	Get(ctx context.Context, accountID int64, key string) (string, error)

	// Set stores the value. An empty value clears the key.
	Set(ctx context.Context, accountID int64, key, value string) error
}
