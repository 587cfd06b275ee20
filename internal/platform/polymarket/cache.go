package polymarket

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// readThrough serves key from cache when present, otherwise runs fetch once
// per key across concurrent callers and stores the result. Cache failures
// only cost a refetch.
type readThrough struct {
	cache  domain.ResponseCache
	group  singleflight.Group
	logger *slog.Logger
}

func newReadThrough(cache domain.ResponseCache, logger *slog.Logger) *readThrough {
	return &readThrough{cache: cache, logger: logger}
}

func (r *readThrough) get(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if r.cache == nil {
		return fetch(ctx)
	}
	if v, err := r.cache.Get(ctx, key); err == nil {
		return v, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		body, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := r.cache.Set(ctx, key, body); err != nil {
			r.logger.DebugContext(ctx, "polymarket: cache set failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
