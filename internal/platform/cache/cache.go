package cache

import (
	"context"
	"time"
)

// Store is a byte-oriented key/value cache with per-entry expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// KeyClass groups keys that share a prefix and a TTL, e.g. encounter lookups.
type KeyClass struct {
	Prefix string
	TTL    time.Duration
}

// Key returns the full cache key for id.
func (k KeyClass) Key(id string) string {
	return k.Prefix + ":" + id
}
