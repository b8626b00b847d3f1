package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"solana-buybot/internal/model"
)

// PriceCache stores price snapshots as JSON strings with a TTL.
// It implements pricing.SnapshotCache.
type PriceCache struct {
	c *Client
}

// NewPriceCache returns a cache under the "price:" namespace.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{c: c}
}

// GetSnapshot returns nil, nil on a miss.
func (p *PriceCache) GetSnapshot(ctx context.Context, mint string) (*model.PriceSnapshot, error) {
	data, err := p.c.rdb.Get(ctx, p.c.key("price", mint)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get price %s: %w", mint, err)
	}

	var snap model.PriceSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("redis decode price %s: %w", mint, err)
	}
	return &snap, nil
}

// SetSnapshot stores snap for ttl.
func (p *PriceCache) SetSnapshot(ctx context.Context, snap model.PriceSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis encode price %s: %w", snap.Mint, err)
	}
	if err := p.c.rdb.Set(ctx, p.c.key("price", snap.Mint), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set price %s: %w", snap.Mint, err)
	}
	return nil
}
