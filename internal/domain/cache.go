package domain

import (
	"context"
	"time"
)

// ResponseCache holds raw endpoint responses for a bounded time. Get
// returns ErrNotFound on a miss. Implementations own their TTL and
// capacity; callers never rely on a hit for correctness.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
