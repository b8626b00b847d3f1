// Package pricing resolves token prices from DexScreener.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"solana-buybot/internal/model"
)

// ErrPriceUnavailable covers every reason an event cannot be priced: no
// pair, zero price, timeout, bad status, bad body, open breaker.
var ErrPriceUnavailable = errors.New("pricing: price unavailable")

const (
	DefaultBaseURL = "https://api.dexscreener.com"
	DefaultTimeout = 7 * time.Second

	maxBodyBytes = 4 << 20
)

// Config configures the DexScreener client.
type Config struct {
	BaseURL      string        // default DefaultBaseURL
	Timeout      time.Duration // per request, default DefaultTimeout
	MaxFailures  int           // breaker threshold, default 5
	ResetTimeout time.Duration // breaker cool-down, default 30s
}

// DexScreener resolves prices through the public token-pairs endpoint.
type DexScreener struct {
	baseURL string
	client  *http.Client
	breaker *Breaker
}

// NewDexScreener creates a client with its own circuit breaker.
func NewDexScreener(cfg Config) *DexScreener {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &DexScreener{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: NewBreaker(cfg.MaxFailures, cfg.ResetTimeout),
	}
}

// Breaker exposes the circuit breaker for state-change hooks.
func (d *DexScreener) Breaker() *Breaker { return d.breaker }

type tokenPairsResponse struct {
	Pairs []dexPair `json:"pairs"`
}

type dexPair struct {
	URL       string              `json:"url"`
	PriceUSD  decimal.NullDecimal `json:"priceUsd"`
	FDV       decimal.NullDecimal `json:"fdv"`
	MarketCap decimal.NullDecimal `json:"marketCap"`
	BaseToken struct {
		Symbol string `json:"symbol"`
	} `json:"baseToken"`
}

// Resolve fetches the first listed pair for mint.
func (d *DexScreener) Resolve(ctx context.Context, mint string) (*model.PriceSnapshot, error) {
	var resp tokenPairsResponse
	err := d.breaker.Execute(func() error {
		return d.fetch(ctx, mint, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPriceUnavailable, mint, err)
	}

	if len(resp.Pairs) == 0 {
		return nil, fmt.Errorf("%w: %s: no pairs", ErrPriceUnavailable, mint)
	}
	p := resp.Pairs[0]
	if !p.PriceUSD.Valid || !p.PriceUSD.Decimal.IsPositive() {
		return nil, fmt.Errorf("%w: %s: no price", ErrPriceUnavailable, mint)
	}

	snap := &model.PriceSnapshot{
		Mint:     mint,
		Symbol:   p.BaseToken.Symbol,
		PriceUSD: p.PriceUSD.Decimal,
		PairURL:  p.URL,
	}
	if snap.Symbol == "" {
		snap.Symbol = model.DefaultSymbol
	}
	switch {
	case p.FDV.Valid && p.FDV.Decimal.IsPositive():
		snap.MarketCap = p.FDV
	case p.MarketCap.Valid && p.MarketCap.Decimal.IsPositive():
		snap.MarketCap = p.MarketCap
	}
	return snap, nil
}

// fetch performs the HTTP call. Only transport and protocol failures are
// returned; an empty pair list is a valid answer and does not trip the breaker.
func (d *DexScreener) fetch(ctx context.Context, mint string, out *tokenPairsResponse) error {
	endpoint := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, url.PathEscape(mint))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dexscreener: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("dexscreener: get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return fmt.Errorf("dexscreener: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("dexscreener: decode: %w", err)
	}
	return nil
}
