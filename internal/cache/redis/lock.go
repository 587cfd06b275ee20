package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// unlockLua deletes the lock only while it still holds the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager implements domain.LockManager with SET NX PX and a
// token-checked Lua unlock.
type LockManager struct {
	c        *Client
	unlockSc *redis.Script
	// retry is how often Acquire polls while waiting, zero means fail fast.
	retry time.Duration
}

// NewLockManager creates a LockManager. With a non-zero retry, Acquire
// waits for a held lock until ctx ends instead of returning ErrLockHeld.
func NewLockManager(c *Client, retry time.Duration) *LockManager {
	return &LockManager{c: c, unlockSc: redis.NewScript(unlockLua), retry: retry}
}

// Acquire obtains the lock for key. The returned unlock is idempotent and
// uses its own short deadline so it works after ctx is cancelled.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := lm.c.key("lock", key)

	for {
		ok, err := lm.c.rdb.SetNX(ctx, lk, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if lm.retry <= 0 {
			return nil, domain.ErrLockHeld
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("redis: acquire lock %s: %w: %v", key, domain.ErrLockHeld, ctx.Err())
		case <-time.After(lm.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lm.unlockSc.Run(unlockCtx, lm.c.rdb, []string{lk}, token).Err()
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
