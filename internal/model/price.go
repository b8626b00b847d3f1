package model

import "github.com/shopspring/decimal"

// DefaultSymbol is used when the price source does not report a ticker.
const DefaultSymbol = "TOKEN"

// PriceSnapshot is the market view of a token at lookup time.
// MarketCap is invalid when the source reported neither fdv nor market cap.
type PriceSnapshot struct {
	Mint      string              `json:"mint"`
	Symbol    string              `json:"symbol"`
	PriceUSD  decimal.Decimal     `json:"price_usd"`
	MarketCap decimal.NullDecimal `json:"market_cap"`
	PairURL   string              `json:"pair_url,omitempty"`
}
