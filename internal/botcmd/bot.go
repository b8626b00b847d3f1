// Package botcmd implements the Telegram side of subscriber configuration:
// slash commands, the /setup inline keyboard and the per-chat
// "next message sets this field" session.
package botcmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	"solana-buybot/internal/logger"
	"solana-buybot/internal/metrics"
	"solana-buybot/internal/model"
	"solana-buybot/internal/notification"
)

// API is the subset of the Bot API the configuration flow uses.
type API interface {
	Reply(ctx context.Context, chatID int64, text string, kb *notification.InlineKeyboard) error
	AnswerCallbackQuery(ctx context.Context, id, text string) error
	GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]notification.Update, int64, error)
	DeleteWebhook(ctx context.Context) error
}

// Bot routes incoming updates to command, callback and session handlers.
type Bot struct {
	api      API
	store    model.SubscriberStore
	sessions SessionStore
	metrics  *metrics.Metrics      // may be nil
	health   *metrics.HealthStatus // may be nil
	log      *slog.Logger

	pollTimeout int // seconds
}

// NewBot creates a bot. m and h may be nil.
func NewBot(api API, store model.SubscriberStore, sessions SessionStore, m *metrics.Metrics, h *metrics.HealthStatus) *Bot {
	return &Bot{
		api:         api,
		store:       store,
		sessions:    sessions,
		metrics:     m,
		health:      h,
		log:         logger.Component("bot"),
		pollTimeout: 30,
	}
}

// Run long-polls for updates until ctx is cancelled. Transient Bot API
// errors back off exponentially up to 30s.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.api.DeleteWebhook(ctx); err != nil {
		return fmt.Errorf("bot: delete webhook: %w", err)
	}

	b.setPolling(true)
	defer b.setPolling(false)
	b.log.Info("bot polling started")

	var offset int64
	backoff := time.Second
	for {
		updates, next, err := b.api.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.log.Warn("getUpdates failed", "err", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second
		offset = next

		for _, u := range updates {
			b.safeHandle(ctx, u)
		}
	}
}

func (b *Bot) setPolling(v bool) {
	if b.health != nil {
		b.health.SetBotPolling(v)
	}
}

func (b *Bot) safeHandle(ctx context.Context, u notification.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("update handler panic recovered",
				"update_id", u.UpdateID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	if err := b.HandleUpdate(ctx, u); err != nil {
		b.log.Warn("update failed", "update_id", u.UpdateID, "err", err)
	}
}

// HandleUpdate processes one update.
func (b *Bot) HandleUpdate(ctx context.Context, u notification.Update) error {
	ctx = logger.WithTraceID(ctx, "update-"+strconv.FormatInt(u.UpdateID, 10))
	switch {
	case u.CallbackQuery != nil:
		b.countUpdate("callback")
		return b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		b.countUpdate("message")
		return b.handleMessage(ctx, u.Message)
	}
	return nil
}

func (b *Bot) countUpdate(kind string) {
	if b.metrics != nil {
		b.metrics.BotUpdates.WithLabelValues(kind).Inc()
	}
}

func (b *Bot) countChange(field string) {
	if b.metrics != nil {
		b.metrics.ConfigChanges.WithLabelValues(field).Inc()
	}
}

// load returns the chat's config, or defaults when the chat is unknown.
func (b *Bot) load(ctx context.Context, chatID string) (model.SubscriberConfig, error) {
	cfg, err := b.store.Get(ctx, chatID)
	if errors.Is(err, model.ErrNotFound) {
		return model.NewSubscriberConfig(chatID), nil
	}
	if err != nil {
		return model.SubscriberConfig{}, err
	}
	return *cfg, nil
}

func chatKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
