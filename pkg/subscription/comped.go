package subscription

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// DefaultCompedExpiryKey is the preference key the comped provider stores the
// expiry timestamp under.
const DefaultCompedExpiryKey = "comped_expires"

// CompedConfig configures a CompedProvider.
type CompedConfig struct {
	ExpiryKey  string        `env:"COMPED_EXPIRY_PREF_KEY" envDefault:"comped_expires"`
	FlairClass string        `env:"COMPED_FLAIR_CLASS" envDefault:"comped-subscriber"`
	CacheTTL   time.Duration `env:"COMPED_CACHE_TTL" envDefault:"10m"`
}

// CompedProvider backs manually granted subscriptions with the per-account
// preference store instead of a dedicated table or a remote API. The expiry
// is stored as a unix timestamp under a single preference key; granting sets
// an absolute expiry, never stacks months onto an existing one.
type CompedProvider struct {
	cfg       CompedConfig
	prefs     PreferenceStore
	directory AccountDirectory
	now       func() time.Time
}

// NewCompedProvider creates a provider over the host's preference store and
// account directory. Panics if either collaborator is nil to fail fast during
// initialization.
func NewCompedProvider(cfg CompedConfig, prefs PreferenceStore, directory AccountDirectory) *CompedProvider {
	if prefs == nil {
		panic("subscription: PreferenceStore is required")
	}
	if directory == nil {
		panic("subscription: AccountDirectory is required")
	}
	if cfg.ExpiryKey == "" {
		cfg.ExpiryKey = DefaultCompedExpiryKey
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheDuration
	}

	return &CompedProvider{
		cfg:       cfg,
		prefs:     prefs,
		directory: directory,
		now:       time.Now,
	}
}

// HasSubscription reports whether the account holds an unexpired comped
// subscription. Fails closed on any error.
func (p *CompedProvider) HasSubscription(ctx context.Context, accountID int64) bool {
	rec, err := p.GetSubscription(ctx, accountID)
	return err == nil && rec != nil && rec.Active
}

// GetSubscription reads the comped expiry preference. An unset or cleared
// expiry is a confirmed absence.
func (p *CompedProvider) GetSubscription(ctx context.Context, accountID int64) (*Record, error) {
	if accountID < 1 {
		return nil, ErrInvalidAccountID
	}

	if err := p.requireRegistered(ctx, accountID); err != nil {
		return nil, err
	}

	raw, err := p.prefs.Get(ctx, accountID, p.cfg.ExpiryKey)
	if err != nil {
		return nil, errors.Join(ErrProviderUnavailable,
			fmt.Errorf("failed to read comped expiry preference: %w", err))
	}
	if raw == "" || raw == "0" {
		return nil, nil
	}

	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errors.Join(ErrProviderUnavailable,
			fmt.Errorf("malformed comped expiry %q: %w", raw, err))
	}
	if unix <= 0 {
		return nil, nil
	}

	expires := time.Unix(unix, 0).UTC()
	return &Record{
		Active:         expires.After(p.now()),
		Expires:        &expires,
		PlanID:         PlanComplimentary,
		PlanName:       "Complimentary",
		Price:          0,
		SubscriptionID: "comped_" + strconv.FormatInt(accountID, 10),
	}, nil
}

// CreateCompedSubscription stores an absolute expiry of now plus the given
// number of months, replacing any previous expiry.
func (p *CompedProvider) CreateCompedSubscription(ctx context.Context, accountID int64, months int) error {
	if accountID < 1 {
		return ErrInvalidAccountID
	}
	if months < 1 {
		return ErrInvalidDuration
	}

	if err := p.requireRegistered(ctx, accountID); err != nil {
		return err
	}

	expires := p.now().AddDate(0, months, 0).UTC()
	if err := p.prefs.Set(ctx, accountID, p.cfg.ExpiryKey, strconv.FormatInt(expires.Unix(), 10)); err != nil {
		return fmt.Errorf("failed to store comped expiry: %w", err)
	}
	return nil
}

// CancelCompedSubscription clears the stored expiry immediately.
func (p *CompedProvider) CancelCompedSubscription(ctx context.Context, accountID int64) error {
	if accountID < 1 {
		return ErrInvalidAccountID
	}

	if err := p.requireRegistered(ctx, accountID); err != nil {
		return err
	}

	if err := p.prefs.Set(ctx, accountID, p.cfg.ExpiryKey, ""); err != nil {
		return fmt.Errorf("failed to clear comped expiry: %w", err)
	}
	return nil
}

// FlairClass returns the configured cosmetic marker.
func (p *CompedProvider) FlairClass() string {
	return p.cfg.FlairClass
}

// CacheDuration returns the configured response cache TTL.
func (p *CompedProvider) CacheDuration() time.Duration {
	return p.cfg.CacheTTL
}

func (p *CompedProvider) requireRegistered(ctx context.Context, accountID int64) error {
	registered, err := p.directory.IsRegistered(ctx, accountID)
	if err != nil {
		return errors.Join(ErrProviderUnavailable,
			fmt.Errorf("failed to resolve account %d: %w", accountID, err))
	}
	if !registered {
		return errors.Join(ErrAccountNotFound, fmt.Errorf("account %d", accountID))
	}
	return nil
}
