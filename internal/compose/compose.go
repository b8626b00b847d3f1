// Package compose renders buy alerts for one subscriber. It is pure: the
// same event, price and subscriber always produce the same messages.
package compose

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"solana-buybot/internal/model"
)

// MaxStack caps the number of emoji glyphs in one alert.
const MaxStack = 30

// UnknownMarketCap is shown when the price source has no market cap.
const UnknownMarketCap = "—"

const (
	solscanTxURL   = "https://solscan.io/tx/"
	jupiterSwapURL = "https://jup.ag/swap/SOL-"
	dexscreenerURL = "https://dexscreener.com/solana/"
)

// Compose returns the messages sub should receive for ev: nothing when the
// notional is below the subscriber's minimum, otherwise a standard alert
// followed by an optional whale alert.
func Compose(ev model.BuyEvent, snap model.PriceSnapshot, sub model.SubscriberConfig) []model.Message {
	notional := Notional(ev, snap)
	if notional.LessThan(decimal.NewFromFloat(sub.MinBuyUSD)) {
		return nil
	}

	msgs := make([]model.Message, 0, 2)
	msgs = append(msgs, model.Message{
		ChatID:  sub.ChatID,
		Kind:    model.KindStandard,
		Text:    standardText(ev, snap, sub, notional),
		PhotoID: sub.BannerFileID,
		Buttons: buttons(ev, snap, sub),
	})

	if sub.WhaleOn && notional.GreaterThanOrEqual(decimal.NewFromFloat(sub.WhaleUSD)) {
		msgs = append(msgs, model.Message{
			ChatID: sub.ChatID,
			Kind:   model.KindWhale,
			Text:   fmt.Sprintf("🐋 *Whale Buy* $%s\\!", EscapeMarkdown(FormatAmount(notional))),
		})
	}
	return msgs
}

// Notional is the exact USD value of the bought quantity.
func Notional(ev model.BuyEvent, snap model.PriceSnapshot) decimal.Decimal {
	return ev.Amount.Mul(snap.PriceUSD)
}

// StackLen is floor(notional/step) clamped to [1, MaxStack]. A non-positive
// step uses the default step.
func StackLen(notional decimal.Decimal, step float64) int {
	if step <= 0 {
		step = model.DefaultStepUSD
	}
	q := notional.Div(decimal.NewFromFloat(step)).Floor()
	switch {
	case q.LessThan(decimal.NewFromInt(1)):
		return 1
	case q.GreaterThan(decimal.NewFromInt(MaxStack)):
		return MaxStack
	default:
		return int(q.IntPart())
	}
}

func standardText(ev model.BuyEvent, snap model.PriceSnapshot, sub model.SubscriberConfig, notional decimal.Decimal) string {
	emoji := sub.Emoji
	if emoji == "" {
		emoji = model.DefaultEmoji
	}
	symbol := EscapeMarkdown(snap.Symbol)

	buyer := "👤 Buyer"
	if ev.Signature != "" {
		buyer += fmt.Sprintf(" \\| [Txn](%s%s)", solscanTxURL, escapeLinkURL(ev.Signature))
	}

	mc := UnknownMarketCap
	if snap.MarketCap.Valid && snap.MarketCap.Decimal.IsPositive() {
		mc = "$" + EscapeMarkdown(FormatAmount(snap.MarketCap.Decimal))
	}

	var b strings.Builder
	b.WriteString("*NEW BUY*\n")
	fmt.Fprintf(&b, "*%s* Buy\\!\n", symbol)
	b.WriteString(EscapeMarkdown(strings.Repeat(emoji, StackLen(notional, sub.StepUSD))))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "💵 $%s \\| 🪙 Got: %s %s\n",
		EscapeMarkdown(FormatAmount(notional)), EscapeMarkdown(FormatAmount(ev.Amount)), symbol)
	b.WriteString(buyer)
	b.WriteString("\n")
	fmt.Fprintf(&b, "🏷 Market Cap: %s", mc)
	return b.String()
}

func buttons(ev model.BuyEvent, snap model.PriceSnapshot, sub model.SubscriberConfig) [][]model.Button {
	dex := snap.PairURL
	if dex == "" {
		dex = dexscreenerURL + ev.Mint
	}
	rows := [][]model.Button{{
		{Text: "Buy", URL: jupiterSwapURL + ev.Mint},
		{Text: "DexS", URL: dex},
	}}

	var links []model.Button
	if sub.Website != "" {
		links = append(links, model.Button{Text: "Website", URL: sub.Website})
	}
	if sub.Twitter != "" {
		links = append(links, model.Button{Text: "Twitter [X]", URL: sub.Twitter})
	}
	if len(links) > 0 {
		rows = append(rows, links)
	}
	return rows
}
