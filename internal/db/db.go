// Package db defines the narrow store contracts the repositories consume
// and the operation-tagged error type the drivers return.
package db

import (
	"context"
	"time"
)

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SetStore provides the set operations the encrypted token indexes need.
type SetStore interface {
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	SMIsMember(ctx context.Context, key string, members []string) ([]bool, error)
}

// HashStore provides hash-based document operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// KeyValueStore provides the conditional blob operations the record store
// adapter needs. Put fails with ErrKeyExists when the key is already
// present; Delete of an absent key is a no-op success.
type KeyValueStore interface {
	Put(ctx context.Context, id string, payload []byte) error
	GetBatch(ctx context.Context, ids []string) (map[string][]byte, error)
	Delete(ctx context.Context, id string) error
	CountExisting(ctx context.Context, ids []string) (int, error)
	Count(ctx context.Context) (int64, error)
}

// ReadyWaiter polls connectivity until the backend responds.
type ReadyWaiter interface {
	WaitForReady(ctx context.Context, timeout time.Duration) error
}
