// Package normalize turns raw Helius enhanced-transaction records into
// canonical BuyEvents.
//
// Producers disagree on where the bought token and quantity live: a plain
// transfer record, the legacy swap summary, or the swap's token output list.
// Each location is one extractor; extractors are tried in order and the
// first usable value wins.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"solana-buybot/internal/model"
)

var (
	// ErrUnusable marks a record without a token or without a positive quantity.
	ErrUnusable = errors.New("normalize: unusable event")

	// ErrMalformedBatch is returned when a webhook body is neither a JSON
	// array nor a JSON object.
	ErrMalformedBatch = errors.New("normalize: malformed batch")
)

type heliusEvent struct {
	Signature      string          `json:"signature"`
	TokenTransfers []tokenTransfer `json:"tokenTransfers"`
	Events         struct {
		Swap *swapEvent `json:"swap"`
	} `json:"events"`
}

type tokenTransfer struct {
	Mint        string          `json:"mint"`
	TokenAmount json.RawMessage `json:"tokenAmount"`
}

type swapEvent struct {
	TokenMintOut   string          `json:"tokenMintOut"`
	TokenAmountOut json.RawMessage `json:"tokenAmountOut"`
	TokenOutputs   []tokenOutput   `json:"tokenOutputs"`
}

type tokenOutput struct {
	Mint           string `json:"mint"`
	RawTokenAmount struct {
		TokenAmount json.RawMessage `json:"tokenAmount"`
		Decimals    int32           `json:"decimals"`
	} `json:"rawTokenAmount"`
}

type (
	mintExtractor   func(*heliusEvent) string
	amountExtractor func(*heliusEvent) (decimal.Decimal, bool)
)

// Transfer record is consulted first for the mint, the swap summary first
// for the quantity.
var (
	mintExtractors = []mintExtractor{
		transferMint,
		swapMintOut,
		swapOutputMint,
	}
	amountExtractors = []amountExtractor{
		swapAmountOut,
		transferAmount,
		swapOutputAmount,
	}
)

// Normalize parses one raw event. It returns ErrUnusable (possibly wrapped)
// when the record cannot produce a BuyEvent.
func Normalize(raw []byte) (model.BuyEvent, error) {
	var ev heliusEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return model.BuyEvent{}, fmt.Errorf("%w: decode: %v", ErrUnusable, err)
	}

	mint := ""
	for _, extract := range mintExtractors {
		if mint = strings.TrimSpace(extract(&ev)); mint != "" {
			break
		}
	}
	if mint == "" {
		return model.BuyEvent{}, fmt.Errorf("%w: no token mint", ErrUnusable)
	}

	var (
		amount decimal.Decimal
		found  bool
	)
	for _, extract := range amountExtractors {
		if amount, found = extract(&ev); found {
			break
		}
	}
	if !found {
		return model.BuyEvent{}, fmt.Errorf("%w: no positive amount for %s", ErrUnusable, mint)
	}

	return model.BuyEvent{
		Mint:      mint,
		Amount:    amount,
		Signature: ev.Signature,
	}, nil
}

// SplitBatch splits a webhook body into individual raw events. A single
// object is a batch of one.
func SplitBatch(body []byte) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrMalformedBatch
	}

	switch body[0] {
	case '[':
		var batch []json.RawMessage
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
		}
		return batch, nil
	case '{':
		if !json.Valid(body) {
			return nil, ErrMalformedBatch
		}
		return []json.RawMessage{json.RawMessage(body)}, nil
	default:
		return nil, ErrMalformedBatch
	}
}

func transferMint(ev *heliusEvent) string {
	if len(ev.TokenTransfers) == 0 {
		return ""
	}
	return ev.TokenTransfers[0].Mint
}

func swapMintOut(ev *heliusEvent) string {
	if ev.Events.Swap == nil {
		return ""
	}
	return ev.Events.Swap.TokenMintOut
}

func swapOutputMint(ev *heliusEvent) string {
	if ev.Events.Swap == nil || len(ev.Events.Swap.TokenOutputs) == 0 {
		return ""
	}
	return ev.Events.Swap.TokenOutputs[0].Mint
}

func swapAmountOut(ev *heliusEvent) (decimal.Decimal, bool) {
	if ev.Events.Swap == nil {
		return decimal.Zero, false
	}
	return parseAmount(ev.Events.Swap.TokenAmountOut)
}

func transferAmount(ev *heliusEvent) (decimal.Decimal, bool) {
	if len(ev.TokenTransfers) == 0 {
		return decimal.Zero, false
	}
	return parseAmount(ev.TokenTransfers[0].TokenAmount)
}

// swapOutputAmount reads the base-unit amount and scales it by decimals.
func swapOutputAmount(ev *heliusEvent) (decimal.Decimal, bool) {
	if ev.Events.Swap == nil || len(ev.Events.Swap.TokenOutputs) == 0 {
		return decimal.Zero, false
	}
	raw := ev.Events.Swap.TokenOutputs[0].RawTokenAmount
	d, ok := parseAmount(raw.TokenAmount)
	if !ok {
		return decimal.Zero, false
	}
	return d.Shift(-raw.Decimals), true
}

// parseAmount accepts a JSON number or a numeric string. Absent, null,
// malformed and non-positive values are all reported as not found.
func parseAmount(raw json.RawMessage) (decimal.Decimal, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero, false
	}
	s = strings.Trim(s, `"`)
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}
