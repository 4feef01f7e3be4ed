package cache

import (
	"context"
	"time"
)

// Store is the byte-level backend behind a Cacher. Get reports presence
// separately from the payload so zero values decode as hits.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Deleter is implemented by stores that can drop a single entry.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// KeySerializer builds a cache key from a method name + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// PrefixDeleter is implemented by stores that can drop every key sharing a
// prefix.
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) error
}
