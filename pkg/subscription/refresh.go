package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// TaskRefresh is the queue task name under which refreshes are enqueued.
const TaskRefresh = "subscription.refresh"

// RefreshTask is the queue payload for one account refresh.
type RefreshTask struct {
	AccountID int64 `json:"account_id"`
}

// Refresher re-queries every configured provider for one account and writes
// definitive answers into the local store. It runs outside the request path,
// typically from the task queue.
type Refresher struct {
	service *Service
	store   LocalStore
	log     *slog.Logger
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithRefresherLogger sets the refresher logger.
func WithRefresherLogger(log *slog.Logger) RefresherOption {
	return func(r *Refresher) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRefresher creates a Refresher. Panics if service or store is nil to fail
// fast during initialization.
func NewRefresher(service *Service, store LocalStore, opts ...RefresherOption) *Refresher {
	if service == nil {
		panic("subscription: Service is required")
	}
	if store == nil {
		panic("subscription: LocalStore is required")
	}

	r := &Refresher{
		service: service,
		store:   store,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh resolves the account against all providers with response caches
// bypassed and upserts each definitive result. A transient provider failure
// skips that provider this round, leaving its stored row untouched; a
// confirmed absence deletes the row. Re-running with unchanged provider state
// yields identical stored rows.
func (r *Refresher) Refresh(ctx context.Context, accountID int64) error {
	if accountID < 1 {
		return ErrInvalidAccountID
	}

	cc := &CacheControl{}
	cc.SkipCache(true)
	ctx = WithCacheControl(ctx, cc)

	results, err := r.service.GetSubscription(ctx, accountID, "")
	if err != nil {
		return err
	}

	var errs []error
	for _, providerID := range r.service.registry.IDs() {
		lookup, ok := results[providerID]
		if !ok {
			continue
		}
		if lookup.Failed() {
			r.log.WarnContext(ctx, "provider lookup failed, keeping cached row",
				"provider", providerID, "account_id", accountID, "error", lookup.Err)
			continue
		}

		if err := r.store.Upsert(ctx, accountID, providerID, lookup.Record); err != nil {
			errs = append(errs, fmt.Errorf("provider %s: %w", providerID, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
