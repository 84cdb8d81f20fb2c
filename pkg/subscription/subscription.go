package subscription

import (
	"context"
	"log/slog"
)

// Service fronts all configured providers for one account. It combines
// per-provider answers but never re-validates them: providers own the
// correctness of their records.
type Service struct {
	registry *Registry
	log      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the service logger.
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService creates a Service over the given registry.
// Panics if registry is nil to fail fast during initialization.
func NewService(registry *Registry, opts ...ServiceOption) *Service {
	if registry == nil {
		panic("subscription: Registry is required")
	}

	s := &Service{
		registry: registry,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasSubscription reports whether the account holds an active subscription
// with the named provider, or with any configured provider when providerID is
// empty. Providers are consulted in configuration order and iteration stops
// at the first positive answer. Naming an unknown provider is a configuration
// error; transient provider failures count as "no".
func (s *Service) HasSubscription(ctx context.Context, accountID int64, providerID string) (bool, error) {
	if accountID < 1 {
		return false, ErrInvalidAccountID
	}

	if providerID != "" {
		provider, err := s.registry.Get(providerID)
		if err != nil {
			return false, err
		}
		return provider.HasSubscription(ctx, accountID), nil
	}

	for _, id := range s.registry.IDs() {
		provider, err := s.registry.Get(id)
		if err != nil {
			return false, err
		}
		if provider.HasSubscription(ctx, accountID) {
			return true, nil
		}
	}
	return false, nil
}

// GetSubscription resolves the account's state with every configured provider
// (or just the named one) and returns a providerID-keyed map. Unlike
// HasSubscription it is not short-circuited: callers like the refresh job
// need every provider's answer, including transient failures.
func (s *Service) GetSubscription(ctx context.Context, accountID int64, providerID string) (map[string]Lookup, error) {
	if accountID < 1 {
		return nil, ErrInvalidAccountID
	}

	ids := s.registry.IDs()
	if providerID != "" {
		if _, err := s.registry.Get(providerID); err != nil {
			return nil, err
		}
		ids = []string{providerID}
	}

	results := make(map[string]Lookup, len(ids))
	for _, id := range ids {
		provider, err := s.registry.Get(id)
		if err != nil {
			return nil, err
		}
		rec, err := provider.GetSubscription(ctx, accountID)
		results[id] = Lookup{Record: rec, Err: err}
	}
	return results, nil
}

// FlairClasses collects the flair class of every provider currently reporting
// an active subscription for the account, in provider configuration order,
// duplicates preserved. Lookup failures degrade silently to "no flair": this
// feeds end-user display and must never surface an error.
func (s *Service) FlairClasses(ctx context.Context, accountID int64) []string {
	if accountID < 1 {
		return nil
	}

	var classes []string
	for _, id := range s.registry.IDs() {
		provider, err := s.registry.Get(id)
		if err != nil {
			s.log.WarnContext(ctx, "flair lookup skipped provider", "provider", id, "error", err)
			continue
		}

		class := provider.FlairClass()
		if class == "" {
			continue
		}

		rec, err := provider.GetSubscription(ctx, accountID)
		if err != nil || rec == nil || !rec.Active {
			continue
		}
		classes = append(classes, class)
	}
	return classes
}
