// Package cache provides a generic in-process LRU cache with optional
// per-entry TTL. It backs the flair class memoization used on the link
// rendering path, where lookups must never wait on the network.
package cache
