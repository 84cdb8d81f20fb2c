package subscription

import "time"

// Record is the canonical shape any provider reports for one account.
// Providers are responsible for keeping Active consistent with Expires as of
// evaluation time; the aggregator does not re-validate dates.
type Record struct {
	Active         bool
	Begins         *time.Time // start of term, nil if not applicable
	Expires        *time.Time // nil means the subscription never expires
	PlanID         string     // machine-readable plan key
	PlanName       string     // human-readable plan label
	Price          float64    // non-negative amount, currency implicit
	SubscriptionID string     // identifies the subscription instance, not the account
}

// Expired reports whether the record's term has ended as of now.
// Records without an expiry never expire.
func (r *Record) Expired(now time.Time) bool {
	if r.Expires == nil {
		return false
	}
	return r.Expires.Before(now)
}

// Lookup is one provider's answer within an aggregated GetSubscription call.
// A nil Record with a nil Err means the provider confirmed the account has no
// subscription. A non-nil Err means the provider could not answer this round.
type Lookup struct {
	Record *Record
	Err    error
}

// Failed reports whether the provider suffered a transient failure.
func (l Lookup) Failed() bool {
	return l.Err != nil
}

// PlanComplimentary is the plan key used for manually granted subscriptions.
const PlanComplimentary = "complimentary"

// DefaultCacheDuration is the response cache TTL providers fall back to when
// not configured otherwise.
const DefaultCacheDuration = 600 * time.Second
