package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-buybot/internal/model"
)

type memCache struct {
	mu      sync.Mutex
	items   map[string]model.PriceSnapshot
	ttls    map[string]time.Duration
	readErr error
}

func newMemCache() *memCache {
	return &memCache{items: map[string]model.PriceSnapshot{}, ttls: map[string]time.Duration{}}
}

func (m *memCache) GetSnapshot(_ context.Context, mint string) (*model.PriceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	s, ok := m.items[mint]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memCache) SetSnapshot(_ context.Context, snap model.PriceSnapshot, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[snap.Mint] = snap
	m.ttls[snap.Mint] = ttl
	return nil
}

type stubResolver struct {
	calls int
	snap  *model.PriceSnapshot
	err   error
}

func (s *stubResolver) Resolve(_ context.Context, mint string) (*model.PriceSnapshot, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	cp := *s.snap
	cp.Mint = mint
	return &cp, nil
}

func TestCached_HitsCacheAfterFirstLookup(t *testing.T) {
	upstream := &stubResolver{snap: &model.PriceSnapshot{Symbol: "WIF", PriceUSD: decimal.NewFromInt(2)}}
	cache := newMemCache()
	c := NewCached(upstream, cache, 0)

	for i := 0; i < 3; i++ {
		snap, err := c.Resolve(context.Background(), "M")
		require.NoError(t, err)
		assert.Equal(t, "WIF", snap.Symbol)
	}
	assert.Equal(t, 1, upstream.calls)
	assert.Equal(t, DefaultCacheTTL, cache.ttls["M"])
}

func TestCached_DoesNotCacheUnavailable(t *testing.T) {
	upstream := &stubResolver{err: ErrPriceUnavailable}
	cache := newMemCache()
	c := NewCached(upstream, cache, time.Second)

	for i := 0; i < 2; i++ {
		_, err := c.Resolve(context.Background(), "M")
		assert.ErrorIs(t, err, ErrPriceUnavailable)
	}
	assert.Equal(t, 2, upstream.calls)
	assert.Empty(t, cache.items)
}

func TestCached_CacheErrorFallsThrough(t *testing.T) {
	upstream := &stubResolver{snap: &model.PriceSnapshot{Symbol: "X", PriceUSD: decimal.NewFromInt(1)}}
	cache := newMemCache()
	cache.readErr = errors.New("redis down")

	snap, err := NewCached(upstream, cache, time.Second).Resolve(context.Background(), "M")
	require.NoError(t, err)
	assert.Equal(t, "X", snap.Symbol)
	assert.Equal(t, 1, upstream.calls)
}
