// Package kvstore provides the pluggable external key-value backing used by
// session state, media offer caches, and conversation-router room hints.
package kvstore

import (
	"context"
	"time"
)

// Store is the minimal external KV abstraction the orchestrator depends on.
// Backends that don't support a requested TTL should treat it as best-effort.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
