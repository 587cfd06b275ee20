package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// ResponseCache implements domain.ResponseCache with SET EX, so every
// replica sharing the Redis sees the same entries.
//
// Key schema:
//
//	{prefix}:resp:{namespace}:{key}
type ResponseCache struct {
	c         *Client
	namespace string
	ttl       time.Duration
}

// NewResponseCache creates a cache whose entries expire after ttl.
func NewResponseCache(c *Client, namespace string, ttl time.Duration) *ResponseCache {
	return &ResponseCache{c: c, namespace: namespace, ttl: ttl}
}

func (rc *ResponseCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := rc.c.rdb.Get(ctx, rc.c.key("resp", rc.namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return v, nil
}

func (rc *ResponseCache) Set(ctx context.Context, key string, value []byte) error {
	if err := rc.c.rdb.Set(ctx, rc.c.key("resp", rc.namespace, key), value, rc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

var _ domain.ResponseCache = (*ResponseCache)(nil)
