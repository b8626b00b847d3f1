package pricing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/latest/dex/tokens/MintABC", r.URL.Path)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestDexScreener_Resolve(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{
		"pairs": [
			{"url": "https://dexscreener.com/solana/pair1", "priceUsd": "0.00001234",
			 "fdv": 1234567.89, "marketCap": 99, "baseToken": {"symbol": "BONK"}},
			{"url": "https://dexscreener.com/solana/pair2", "priceUsd": "5"}
		]
	}`)

	ds := NewDexScreener(Config{BaseURL: srv.URL})
	snap, err := ds.Resolve(context.Background(), "MintABC")
	require.NoError(t, err)

	assert.Equal(t, "MintABC", snap.Mint)
	assert.Equal(t, "BONK", snap.Symbol)
	assert.Equal(t, "https://dexscreener.com/solana/pair1", snap.PairURL)
	assert.True(t, snap.PriceUSD.Equal(decimal.RequireFromString("0.00001234")))
	require.True(t, snap.MarketCap.Valid)
	assert.True(t, snap.MarketCap.Decimal.Equal(decimal.RequireFromString("1234567.89")))
}

func TestDexScreener_MarketCapFallbackAndDefaultSymbol(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"pairs": [{"priceUsd": "2", "fdv": 0, "marketCap": 500}]}`)

	snap, err := NewDexScreener(Config{BaseURL: srv.URL}).Resolve(context.Background(), "MintABC")
	require.NoError(t, err)
	assert.Equal(t, "TOKEN", snap.Symbol)
	require.True(t, snap.MarketCap.Valid)
	assert.True(t, snap.MarketCap.Decimal.Equal(decimal.NewFromInt(500)))
	assert.Empty(t, snap.PairURL)
}

func TestDexScreener_NoMarketCap(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"pairs": [{"priceUsd": "2"}]}`)

	snap, err := NewDexScreener(Config{BaseURL: srv.URL}).Resolve(context.Background(), "MintABC")
	require.NoError(t, err)
	assert.False(t, snap.MarketCap.Valid)
}

func TestDexScreener_Unavailable(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"no pairs":     {http.StatusOK, `{"pairs": null}`},
		"empty pairs":  {http.StatusOK, `{"pairs": []}`},
		"zero price":   {http.StatusOK, `{"pairs": [{"priceUsd": "0"}]}`},
		"absent price": {http.StatusOK, `{"pairs": [{"url": "x"}]}`},
		"bad status":   {http.StatusTooManyRequests, `{}`},
		"bad body":     {http.StatusOK, `{"pairs": [`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv, _ := newServer(t, tc.status, tc.body)
			_, err := NewDexScreener(Config{BaseURL: srv.URL}).Resolve(context.Background(), "MintABC")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPriceUnavailable)
		})
	}
}

func TestDexScreener_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	ds := NewDexScreener(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := ds.Resolve(context.Background(), "MintABC")
	assert.ErrorIs(t, err, ErrPriceUnavailable)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestDexScreener_BreakerOpens(t *testing.T) {
	srv, hits := newServer(t, http.StatusInternalServerError, `oops`)

	ds := NewDexScreener(Config{BaseURL: srv.URL, MaxFailures: 2, ResetTimeout: time.Minute})
	for i := 0; i < 2; i++ {
		_, err := ds.Resolve(context.Background(), "MintABC")
		require.ErrorIs(t, err, ErrPriceUnavailable)
	}
	require.Equal(t, StateOpen, ds.Breaker().CurrentState())

	_, err := ds.Resolve(context.Background(), "MintABC")
	assert.ErrorIs(t, err, ErrPriceUnavailable)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.EqualValues(t, 2, hits.Load(), "open breaker must not reach the server")
}

func TestDexScreener_EmptyPairsDoNotTripBreaker(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"pairs": []}`)

	ds := NewDexScreener(Config{BaseURL: srv.URL, MaxFailures: 1})
	for i := 0; i < 3; i++ {
		ds.Resolve(context.Background(), "MintABC")
	}
	assert.Equal(t, StateClosed, ds.Breaker().CurrentState())
}
