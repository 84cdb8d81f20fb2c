// Package substore is the PostgreSQL mirror of provider-reported subscription
// state, keyed by (account ID, provider ID). It backs the fast read path, the
// administrative listing with filters and statistics, and the one-time batch
// migrations that move legacy entitlement data into the current schema.
package substore
