// Package queue implements a small at-least-once task queue with automatic
// de-duplication of identical pending units. The subscription refresh job is
// enqueued through it: many page views may request a refresh for the same
// account, but only one pending task per account ever exists.
//
// Storage is pluggable; MemoryStorage covers single-process deployments and
// tests.
package queue
