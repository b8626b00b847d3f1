package botcmd

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"solana-buybot/internal/compose"
	"solana-buybot/internal/logger"
	"solana-buybot/internal/model"
	"solana-buybot/internal/notification"
)

// Callback data of the /setup keyboard.
const (
	cbEmoji    = "cfg_emoji"
	cbMin      = "cfg_min"
	cbStep     = "cfg_step"
	cbWhale    = "cfg_whale"
	cbWhaleUSD = "cfg_whale_usd"
	cbSite     = "cfg_site"
	cbTwitter  = "cfg_twitter"
	cbBanner   = "cfg_banner"
	cbDone     = "cfg_done"
)

const helpText = "Buy alert bot\n" +
	"/setpair <mint> bind this chat to a token\n" +
	"/setup open the settings panel\n" +
	"/settings show the current settings"

// prompts maps a callback to the session state it opens and the question asked.
var prompts = map[string]struct {
	state  string
	prompt string
}{
	cbEmoji:    {StateAwaitEmoji, "Send an emoji to use for the buy stack"},
	cbMin:      {StateAwaitMin, "Send the minimum buy to alert on (USD), e.g. 15"},
	cbStep:     {StateAwaitStep, "Send the USD value of one stack emoji, e.g. 3"},
	cbWhaleUSD: {StateAwaitWhaleUSD, "Send the whale threshold (USD), e.g. 1000"},
	cbSite:     {StateAwaitSite, "Send the website link"},
	cbTwitter:  {StateAwaitTwitter, "Send the Twitter link"},
	cbBanner:   {StateAwaitBanner, "Send a photo to use as banner, or off to remove it"},
}

// parseCommand splits "/cmd@BotName arg..." into "cmd" and its arguments.
// ok is false for text that is not a command.
func parseCommand(text string) (cmd string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	cmd = strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), fields[1:], true
}

func (b *Bot) handleMessage(ctx context.Context, msg *notification.Message) error {
	chatID := msg.Chat.ID

	if cmd, args, ok := parseCommand(msg.Text); ok {
		switch cmd {
		case "start", "help":
			return b.reply(ctx, chatID, helpText, nil)
		case "setpair":
			return b.setPair(ctx, chatID, args)
		case "setup":
			return b.setup(ctx, chatID)
		case "settings":
			return b.settings(ctx, chatID)
		}
		return nil
	}

	state, err := b.sessions.Get(ctx, chatKey(chatID))
	if err != nil {
		return fmt.Errorf("bot: session get: %w", err)
	}
	if state == StateIdle {
		return nil
	}
	return b.commitInput(ctx, msg, state)
}

func (b *Bot) setPair(ctx context.Context, chatID int64, args []string) error {
	if len(args) == 0 {
		return b.reply(ctx, chatID, "Usage: /setpair <mint address>", nil)
	}
	cfg, err := b.load(ctx, chatKey(chatID))
	if err != nil {
		return err
	}
	cfg.Mint = args[0]
	if err := b.store.Upsert(ctx, cfg); err != nil {
		return err
	}
	b.countChange("mint")
	logger.From(ctx, b.log).Info("chat bound to mint", "chat_id", cfg.ChatID, "mint", cfg.Mint)
	return b.reply(ctx, chatID, "Token bound: "+cfg.Mint+"\nPoint the Helius webhook at /helius.", nil)
}

func (b *Bot) setup(ctx context.Context, chatID int64) error {
	cfg, err := b.load(ctx, chatKey(chatID))
	if err != nil {
		return err
	}
	if err := b.store.Upsert(ctx, cfg); err != nil {
		return err
	}
	return b.reply(ctx, chatID, "Setup your Buybot. Current emoji: "+cfg.Emoji, setupKeyboard(cfg))
}

func setupKeyboard(cfg model.SubscriberConfig) *notification.InlineKeyboard {
	whale := "🐋 Whale ❌"
	if cfg.WhaleOn {
		whale = "🐋 Whale ✅"
	}
	btn := func(text, data string) notification.InlineButton {
		return notification.InlineButton{Text: text, CallbackData: data}
	}
	return &notification.InlineKeyboard{InlineKeyboard: [][]notification.InlineButton{
		{btn(cfg.Emoji+" Buy Emoji", cbEmoji), btn("Min Buy", cbMin)},
		{btn("Buy Step", cbStep), btn(whale, cbWhale)},
		{btn("Whale USD", cbWhaleUSD), btn("🖼 Banner", cbBanner)},
		{btn("🌐 Website", cbSite), btn("Twitter [X]", cbTwitter)},
		{btn("✅ Done", cbDone)},
	}}
}

func (b *Bot) settings(ctx context.Context, chatID int64) error {
	cfg, err := b.load(ctx, chatKey(chatID))
	if err != nil {
		return err
	}
	orNone := func(s string) string {
		if s == "" {
			return "not set"
		}
		return s
	}
	onOff := "off"
	if cfg.WhaleOn {
		onOff = "on"
	}
	banner := "not set"
	if cfg.BannerFileID != "" {
		banner = "set"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Token: %s\n", orNone(cfg.Mint))
	fmt.Fprintf(&sb, "Emoji: %s\n", cfg.Emoji)
	fmt.Fprintf(&sb, "Min buy: $%s\n", formatUSD(cfg.MinBuyUSD))
	fmt.Fprintf(&sb, "Step: $%s\n", formatUSD(cfg.StepUSD))
	fmt.Fprintf(&sb, "Whale alerts: %s (from $%s)\n", onOff, formatUSD(cfg.WhaleUSD))
	fmt.Fprintf(&sb, "Website: %s\n", orNone(cfg.Website))
	fmt.Fprintf(&sb, "Twitter: %s\n", orNone(cfg.Twitter))
	fmt.Fprintf(&sb, "Banner: %s", banner)
	return b.reply(ctx, chatID, sb.String(), nil)
}

func (b *Bot) handleCallback(ctx context.Context, cq *notification.CallbackQuery) error {
	if err := b.api.AnswerCallbackQuery(ctx, cq.ID, ""); err != nil {
		b.log.Debug("answerCallbackQuery failed", "err", err)
	}
	if cq.Message == nil {
		return nil
	}
	chatID := cq.Message.Chat.ID
	key := chatKey(chatID)

	if p, ok := prompts[cq.Data]; ok {
		if err := b.sessions.Set(ctx, key, p.state); err != nil {
			return fmt.Errorf("bot: session set: %w", err)
		}
		return b.reply(ctx, chatID, p.prompt, nil)
	}

	switch cq.Data {
	case cbWhale:
		cfg, err := b.load(ctx, key)
		if err != nil {
			return err
		}
		cfg.WhaleOn = !cfg.WhaleOn
		if err := b.store.Upsert(ctx, cfg); err != nil {
			return err
		}
		b.countChange("whale_on")
		if cfg.WhaleOn {
			return b.reply(ctx, chatID, "Whale alerts: on", nil)
		}
		return b.reply(ctx, chatID, "Whale alerts: off", nil)
	case cbDone:
		if err := b.sessions.Clear(ctx, key); err != nil {
			return fmt.Errorf("bot: session clear: %w", err)
		}
		return b.reply(ctx, chatID, "✅ Setup complete", nil)
	}
	return nil
}

// commitInput applies the message to the field the session is waiting for,
// persists it and returns the chat to idle.
func (b *Bot) commitInput(ctx context.Context, msg *notification.Message, state string) error {
	chatID := msg.Chat.ID
	key := chatKey(chatID)
	cfg, err := b.load(ctx, key)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(msg.Text)

	var field string
	switch state {
	case StateAwaitEmoji:
		if text == "" {
			return nil
		}
		cfg.Emoji, field = text, "emoji"
	case StateAwaitMin:
		cfg.MinBuyUSD, field = positiveOr(text, cfg.MinBuyUSD, model.DefaultMinBuyUSD), "min_buy_usd"
	case StateAwaitStep:
		cfg.StepUSD, field = positiveOr(text, cfg.StepUSD, model.DefaultStepUSD), "step_usd"
	case StateAwaitWhaleUSD:
		cfg.WhaleUSD, field = positiveOr(text, cfg.WhaleUSD, model.DefaultWhaleUSD), "whale_usd"
	case StateAwaitSite:
		cfg.Website, field = text, "website"
	case StateAwaitTwitter:
		cfg.Twitter, field = text, "twitter"
	case StateAwaitBanner:
		switch {
		case len(msg.Photo) > 0:
			// Sizes are ascending; keep the largest.
			cfg.BannerFileID = msg.Photo[len(msg.Photo)-1].FileID
		case strings.EqualFold(text, "off"):
			cfg.BannerFileID = ""
		default:
			return b.reply(ctx, chatID, "Send a photo, or off to remove the banner", nil)
		}
		field = "banner"
	default:
		// Unknown state from an older deployment.
		return b.sessions.Clear(ctx, key)
	}

	if err := b.store.Upsert(ctx, cfg); err != nil {
		return err
	}
	if err := b.sessions.Clear(ctx, key); err != nil {
		return fmt.Errorf("bot: session clear: %w", err)
	}
	b.countChange(field)
	logger.From(ctx, b.log).Info("setting updated", "chat_id", key, "field", field)
	return b.reply(ctx, chatID, "✅ Updated", nil)
}

// positiveOr parses s as a positive finite number. Otherwise it keeps prev,
// or def when prev is not positive either.
func positiveOr(s string, prev, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimPrefix(s, "$"), 64)
	if err == nil && v > 0 && !math.IsInf(v, 0) {
		return v
	}
	if prev > 0 {
		return prev
	}
	return def
}

func formatUSD(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// reply escapes plain text for MarkdownV2 and sends it.
func (b *Bot) reply(ctx context.Context, chatID int64, text string, kb *notification.InlineKeyboard) error {
	return b.api.Reply(ctx, chatID, compose.EscapeMarkdown(text), kb)
}
