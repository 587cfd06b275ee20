// Package memory provides an in-process bounded response cache and a
// single-replica lock manager.
package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// ResponseCache is an LRU with a fixed capacity and a per-entry TTL.
type ResponseCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewResponseCache creates a cache holding at most capacity entries, each
// expiring ttl after it was written.
func NewResponseCache(capacity int, ttl time.Duration) *ResponseCache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &ResponseCache{lru: expirable.NewLRU[string, []byte](capacity, nil, ttl)}
}

func (c *ResponseCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (c *ResponseCache) Set(_ context.Context, key string, value []byte) error {
	c.lru.Add(key, append([]byte(nil), value...))
	return nil
}

// Len returns the number of live entries.
func (c *ResponseCache) Len() int { return c.lru.Len() }

var _ domain.ResponseCache = (*ResponseCache)(nil)
