package model

import "github.com/shopspring/decimal"

// BuyEvent is a normalized swap notification: the token received by the
// buyer, the quantity received, and the transaction signature.
// It lives only for the duration of one pipeline run.
type BuyEvent struct {
	Mint      string          `json:"mint"`
	Amount    decimal.Decimal `json:"amount"`    // token units, already scaled
	Signature string          `json:"signature"` // may be empty
}

// TraceKey returns the identifier used to correlate log lines of one event.
func (e BuyEvent) TraceKey() string {
	if e.Signature != "" {
		return e.Signature
	}
	return e.Mint
}
