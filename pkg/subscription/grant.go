package subscription

import (
	"context"
	"errors"
	"fmt"
)

// MaxCompMonths bounds the duration an administrator may grant in one go.
const MaxCompMonths = 100

// Grantor is the admin-facing workflow for granting and revoking comped
// subscriptions by account name.
type Grantor struct {
	registry  *Registry
	directory AccountDirectory
}

// NewGrantor creates a Grantor. Panics if registry or directory is nil to
// fail fast during initialization.
func NewGrantor(registry *Registry, directory AccountDirectory) *Grantor {
	if registry == nil {
		panic("subscription: Registry is required")
	}
	if directory == nil {
		panic("subscription: AccountDirectory is required")
	}
	return &Grantor{registry: registry, directory: directory}
}

// Grant issues a comped subscription of the given duration to the named
// account through the named provider ("" = default). An existing comp is an
// error unless overwrite is set, in which case it is cancelled first. The
// returned record is a skip-cache verification read of the new state.
func (g *Grantor) Grant(ctx context.Context, accountName, providerID string, months int, overwrite bool) (*Record, error) {
	if months < 1 || months > MaxCompMonths {
		return nil, ErrInvalidDuration
	}

	accountID, err := g.directory.IDByName(ctx, accountName)
	if err != nil {
		return nil, err
	}

	provider, err := g.registry.Get(providerID)
	if err != nil {
		return nil, err
	}

	cc := &CacheControl{}
	cc.SkipCache(true)
	ctx = WithCacheControl(ctx, cc)

	existing, err := provider.GetSubscription(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing subscription: %w", err)
	}
	if existing != nil {
		if !overwrite {
			return nil, errors.Join(ErrAlreadyComped, fmt.Errorf("account %q", accountName))
		}
		if err := provider.CancelCompedSubscription(ctx, accountID); err != nil {
			return nil, fmt.Errorf("failed to cancel existing subscription: %w", err)
		}
	}

	if err := provider.CreateCompedSubscription(ctx, accountID, months); err != nil {
		return nil, err
	}

	rec, err := provider.GetSubscription(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("grant stored but verification read failed: %w", err)
	}
	return rec, nil
}

// Cancel revokes the named account's comped subscription through the named
// provider ("" = default).
func (g *Grantor) Cancel(ctx context.Context, accountName, providerID string) error {
	accountID, err := g.directory.IDByName(ctx, accountName)
	if err != nil {
		return err
	}

	provider, err := g.registry.Get(providerID)
	if err != nil {
		return err
	}

	return provider.CancelCompedSubscription(ctx, accountID)
}
