// Package pg provides PostgreSQL connection management for the entitlement
// store: pooled connections with startup retry, health checks, goose schema
// migrations, and error classification helpers for SQLSTATE codes the
// subscription cache cares about.
package pg
