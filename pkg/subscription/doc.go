// Package subscription resolves whether an account holds an active paid
// subscription across one or more configured entitlement providers.
//
// A Provider answers for a single backend (a remote entitlement API, a
// preference-backed comped store). The Registry resolves provider IDs to
// lazily constructed singletons in a deterministic configuration order. The
// Service aggregates all configured providers for one account: short-circuit
// OR for HasSubscription, a full per-provider map for GetSubscription, and
// flair classes for cosmetic display.
//
// GetSubscription has a three-way contract:
//
//	rec, nil  — the provider answered with subscription data
//	nil, nil  — the provider confirmed the account has no subscription
//	nil, err  — transient failure; callers must not treat this as absence
//
// The distinction matters for the Refresher: a confirmed absence deletes the
// locally cached row, a transient failure leaves it untouched.
//
// Cache behavior for one logical operation is controlled through a
// CacheControl value carried in the context, never through shared mutable
// state. See WithCacheControl.
package subscription
