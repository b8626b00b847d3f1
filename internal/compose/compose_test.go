package compose

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-buybot/internal/model"
)

func event(amount string) model.BuyEvent {
	return model.BuyEvent{
		Mint:      "MintXYZ",
		Amount:    decimal.RequireFromString(amount),
		Signature: "5abcSig",
	}
}

func snapshot(price string) model.PriceSnapshot {
	return model.PriceSnapshot{
		Mint:      "MintXYZ",
		Symbol:    "BONK",
		PriceUSD:  decimal.RequireFromString(price),
		MarketCap: decimal.NewNullDecimal(decimal.NewFromInt(2500000)),
		PairURL:   "https://dexscreener.com/solana/pairaddr",
	}
}

func TestNotional_IsExact(t *testing.T) {
	got := Notional(event("0.1"), snapshot("0.2"))
	assert.True(t, got.Equal(decimal.RequireFromString("0.02")), "got %s", got)
}

func TestCompose_MinBuyBoundary(t *testing.T) {
	sub := model.NewSubscriberConfig("chat-1")

	assert.Empty(t, Compose(event("14.99"), snapshot("1"), sub))

	msgs := Compose(event("15.00"), snapshot("1"), sub)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.KindStandard, msgs[0].Kind)
	assert.Equal(t, "chat-1", msgs[0].ChatID)
}

func TestCompose_StackClamp(t *testing.T) {
	sub := model.NewSubscriberConfig("c")
	sub.MinBuyUSD = 0
	sub.WhaleOn = false

	msgs := Compose(event("100"), snapshot("1"), sub)
	require.Len(t, msgs, 1)
	assert.Equal(t, MaxStack, strings.Count(msgs[0].Text, model.DefaultEmoji))

	msgs = Compose(event("1"), snapshot("1"), sub)
	require.Len(t, msgs, 1)
	assert.Equal(t, 1, strings.Count(msgs[0].Text, model.DefaultEmoji))
}

func TestStackLen(t *testing.T) {
	cases := []struct {
		notional string
		step     float64
		want     int
	}{
		{"100", 3, 30},
		{"29.99", 3, 9},
		{"0.5", 3, 1},
		{"1000000", 3, 30},
		{"12", 0, 4},
		{"12", -1, 4},
		{"45", 1.5, 30},
		{"6", 1.5, 4},
	}
	for _, tc := range cases {
		got := StackLen(decimal.RequireFromString(tc.notional), tc.step)
		assert.Equal(t, tc.want, got, "notional=%s step=%v", tc.notional, tc.step)
	}
}

func TestCompose_Whale(t *testing.T) {
	sub := model.NewSubscriberConfig("c")

	msgs := Compose(event("1000"), snapshot("1"), sub)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.KindStandard, msgs[0].Kind)
	assert.Equal(t, model.KindWhale, msgs[1].Kind)
	assert.Equal(t, "🐋 *Whale Buy* $1,000\\!", msgs[1].Text)
	assert.Empty(t, msgs[1].Buttons)

	assert.Len(t, Compose(event("999.99"), snapshot("1"), sub), 1)

	sub.WhaleOn = false
	assert.Len(t, Compose(event("1000000"), snapshot("1"), sub), 1)
}

func TestCompose_StandardText(t *testing.T) {
	sub := model.NewSubscriberConfig("c")
	sub.Emoji = "🚀"
	sub.StepUSD = 10
	sub.WhaleOn = false

	msgs := Compose(event("1234.5678"), snapshot("0.1"), sub)
	require.Len(t, msgs, 1)

	want := "*NEW BUY*\n" +
		"*BONK* Buy\\!\n" +
		"🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀\n" +
		"\n" +
		"💵 $123\\.45 \\| 🪙 Got: 1,234\\.56 BONK\n" +
		"👤 Buyer \\| [Txn](https://solscan.io/tx/5abcSig)\n" +
		"🏷 Market Cap: $2,500,000"
	assert.Equal(t, want, msgs[0].Text)
}

func TestCompose_UnknownMarketCapAndNoSignature(t *testing.T) {
	ev := event("20")
	ev.Signature = ""
	snap := snapshot("1")
	snap.MarketCap = decimal.NullDecimal{}

	msgs := Compose(ev, snap, model.NewSubscriberConfig("c"))
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "🏷 Market Cap: "+UnknownMarketCap)
	assert.NotContains(t, msgs[0].Text, "Txn")
}

func TestCompose_Buttons(t *testing.T) {
	sub := model.NewSubscriberConfig("c")
	msgs := Compose(event("20"), snapshot("1"), sub)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Buttons, 1)
	assert.Equal(t, []model.Button{
		{Text: "Buy", URL: "https://jup.ag/swap/SOL-MintXYZ"},
		{Text: "DexS", URL: "https://dexscreener.com/solana/pairaddr"},
	}, msgs[0].Buttons[0])

	sub.Website = "https://bonk.example"
	sub.Twitter = "https://x.com/bonk"
	snap := snapshot("1")
	snap.PairURL = ""
	msgs = Compose(event("20"), snap, sub)
	require.Len(t, msgs[0].Buttons, 2)
	assert.Equal(t, "https://dexscreener.com/solana/MintXYZ", msgs[0].Buttons[0][1].URL)
	assert.Equal(t, []model.Button{
		{Text: "Website", URL: "https://bonk.example"},
		{Text: "Twitter [X]", URL: "https://x.com/bonk"},
	}, msgs[0].Buttons[1])

	sub.Website = ""
	msgs = Compose(event("20"), snap, sub)
	require.Len(t, msgs[0].Buttons, 2)
	assert.Len(t, msgs[0].Buttons[1], 1)
}

func TestCompose_Banner(t *testing.T) {
	sub := model.NewSubscriberConfig("c")
	sub.BannerFileID = "AgACAgQ"
	msgs := Compose(event("2000"), snapshot("1"), sub)
	require.Len(t, msgs, 2)
	assert.Equal(t, "AgACAgQ", msgs[0].PhotoID)
	assert.Empty(t, msgs[1].PhotoID)
}

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"0":          "0",
		"15":         "15",
		"15.5":       "15.5",
		"1234.5678":  "1,234.56",
		"0.019":      "0.01",
		"999.999":    "999.99",
		"1000000.1":  "1,000,000.1",
		"42.10":      "42.1",
		"0.29":       "0.29",
		"12345678.9": "12,345,678.9",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatAmount(decimal.RequireFromString(in)), "input %s", in)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `1,234\.56`, EscapeMarkdown("1,234.56"))
	assert.Equal(t, `a\_b\*c\[d\]\(e\)\!`, EscapeMarkdown("a_b*c[d](e)!"))
	assert.Equal(t, `\\`, EscapeMarkdown(`\`))
}
