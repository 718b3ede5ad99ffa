// Package ttlstore declares the TTL key/value collaborator used by the
// flood detector, plus an in-memory implementation.
//
// The interface matches an external list store with per-key expiry; any
// backend offering append/expire/get/delete can replace Memory, and a
// shared backend is what coordinates multiple bot processes.
package ttlstore

import (
	"context"
	"time"
)

// Store is a list-per-key store with per-key expiry.
type Store interface {
	// Append adds value to the list at key, creating it if absent.
	Append(ctx context.Context, key, value string) error

	// Expire (re)sets the key's time-to-live.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Get returns the current list, or nil if the key is absent or expired.
	Get(ctx context.Context, key string) ([]string, error)

	// Delete removes the key.
	Delete(ctx context.Context, key string) error
}
