package memory

import (
	"context"
	"sync"
	"time"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// LockManager is an in-process domain.LockManager for single-replica
// deployments. A lock not released within its ttl is treated as free. It
// is safe for concurrent use.
type LockManager struct {
	mu    sync.Mutex
	held  map[string]lease
	now   func() time.Time
	token uint64
}

type lease struct {
	token   uint64
	expires time.Time
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]lease), now: time.Now}
}

// Acquire takes key for ttl or fails fast with domain.ErrLockHeld. The
// returned unlock is idempotent and never releases a lease that expired and
// was taken by another caller.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := lm.now()
	if l, ok := lm.held[key]; ok && now.Before(l.expires) {
		return nil, domain.ErrLockHeld
	}
	lm.sweep(now)

	lm.token++
	token := lm.token
	lm.held[key] = lease{token: token, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			lm.mu.Lock()
			defer lm.mu.Unlock()
			if l, ok := lm.held[key]; ok && l.token == token {
				delete(lm.held, key)
			}
		})
	}, nil
}

// sweep drops expired leases. Caller holds mu.
func (lm *LockManager) sweep(now time.Time) {
	for k, l := range lm.held {
		if !now.Before(l.expires) {
			delete(lm.held, k)
		}
	}
}
