// Package kvstore defines the auxiliary key/value store used for document
// metadata, the response cache, and the call/feedback logs.
package kvstore

import (
	"context"
	"time"
)

// Store is a key/value store with per-key atomic operations. Plain keys support
// TTL expiry; hash maps and lists do not expire. No multi-key transactions are
// offered and none are needed: every caller works on independent keys.
type Store interface {
	// Plain keys. Get reports ok=false for a missing or expired key.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Hash maps.
	HashGet(ctx context.Context, m, field string) (value string, ok bool, err error)
	HashSet(ctx context.Context, m, field, value string) error
	HashGetAll(ctx context.Context, m string) (map[string]string, error)
	HashDelete(ctx context.Context, m, field string) error

	// Lists. ListPush prepends; ListRange returns newest first, stop inclusive,
	// stop = -1 meaning the end of the list.
	ListPush(ctx context.Context, key, value string) error
	ListRange(ctx context.Context, key string, start, stop int) ([]string, error)

	Close() error
}
