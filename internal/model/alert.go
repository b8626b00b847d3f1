package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BuyAlert is the event-level record published to alert feeds (WebSocket
// clients, Kafka). One alert is produced per priced event with subscribers,
// independent of how many chats were notified.
type BuyAlert struct {
	Mint        string              `json:"mint"`
	Symbol      string              `json:"symbol"`
	Signature   string              `json:"signature,omitempty"`
	Amount      decimal.Decimal     `json:"amount"`
	PriceUSD    decimal.Decimal     `json:"price_usd"`
	NotionalUSD decimal.Decimal     `json:"notional_usd"`
	MarketCap   decimal.NullDecimal `json:"market_cap"`
	Subscribers int                 `json:"subscribers"`
	Delivered   int                 `json:"delivered"`
	TS          time.Time           `json:"ts"`
}

// NewBuyAlert builds an alert from a priced event.
func NewBuyAlert(ev BuyEvent, snap PriceSnapshot, subscribers int, now time.Time) BuyAlert {
	return BuyAlert{
		Mint:        ev.Mint,
		Symbol:      snap.Symbol,
		Signature:   ev.Signature,
		Amount:      ev.Amount,
		PriceUSD:    snap.PriceUSD,
		NotionalUSD: ev.Amount.Mul(snap.PriceUSD),
		MarketCap:   snap.MarketCap,
		Subscribers: subscribers,
		TS:          now.UTC(),
	}
}
