package pricing

import (
	"context"
	"log/slog"
	"time"

	"solana-buybot/internal/logger"
	"solana-buybot/internal/model"
)

// DefaultCacheTTL bounds how stale a cached price may be.
const DefaultCacheTTL = 10 * time.Second

// SnapshotCache stores price snapshots with a TTL.
type SnapshotCache interface {
	// GetSnapshot returns nil, nil on a miss.
	GetSnapshot(ctx context.Context, mint string) (*model.PriceSnapshot, error)
	SetSnapshot(ctx context.Context, snap model.PriceSnapshot, ttl time.Duration) error
}

// Cached serves recent snapshots from a cache before asking the upstream
// resolver. Only successful lookups are cached, so an unavailable price is
// retried on the next event. Cache errors degrade to a direct lookup.
type Cached struct {
	next  model.PriceResolver
	cache SnapshotCache
	ttl   time.Duration
	log   *slog.Logger
}

// NewCached wraps next with cache. A non-positive ttl uses DefaultCacheTTL.
func NewCached(next model.PriceResolver, cache SnapshotCache, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   logger.Component("pricing"),
	}
}

func (c *Cached) Resolve(ctx context.Context, mint string) (*model.PriceSnapshot, error) {
	snap, err := c.cache.GetSnapshot(ctx, mint)
	if err != nil {
		logger.From(ctx, c.log).Warn("price cache read failed", "mint", mint, "err", err)
	} else if snap != nil {
		return snap, nil
	}

	snap, err = c.next.Resolve(ctx, mint)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetSnapshot(ctx, *snap, c.ttl); err != nil {
		logger.From(ctx, c.log).Warn("price cache write failed", "mint", mint, "err", err)
	}
	return snap, nil
}
