package compose

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// FormatAmount renders d with en-US thousands grouping and at most two
// fraction digits. Extra digits are truncated, never rounded up, and
// trailing zeros are dropped: 1234.5678 -> "1,234.56", 15 -> "15".
func FormatAmount(d decimal.Decimal) string {
	t := d.Truncate(2)
	// After truncation the float is within one ulp of a two-digit value, so
	// the printer's own rounding lands back on it.
	f, _ := t.Float64()
	p := message.NewPrinter(language.English)
	return p.Sprint(number.Decimal(f, number.MaxFractionDigits(2)))
}

// EscapeMarkdown escapes Telegram MarkdownV2 special characters.
func EscapeMarkdown(s string) string {
	return mdReplacer.Replace(s)
}

var mdReplacer = strings.NewReplacer(
	`\`, `\\`,
	"_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
	"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
)

// escapeLinkURL escapes the characters MarkdownV2 reserves inside the
// (...) part of an inline link.
func escapeLinkURL(s string) string {
	return linkReplacer.Replace(s)
}

var linkReplacer = strings.NewReplacer(`\`, `\\`, ")", `\)`)
