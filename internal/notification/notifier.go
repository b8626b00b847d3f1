// Package notification delivers composed alerts to Telegram and publishes
// event-level alerts to outbound webhooks.
package notification

import (
	"context"
	"log/slog"

	"solana-buybot/internal/logger"
	"solana-buybot/internal/model"
)

// LogSender writes messages to the log instead of Telegram. It backs
// DRY_RUN mode and local development.
type LogSender struct {
	log *slog.Logger
}

// NewLogSender creates a log-based sender.
func NewLogSender() *LogSender {
	return &LogSender{log: logger.Component("dry-run")}
}

func (s *LogSender) Send(ctx context.Context, msg model.Message) error {
	logger.From(ctx, s.log).Info("would send",
		"chat_id", msg.ChatID,
		"kind", msg.Kind,
		"photo", msg.PhotoID != "",
		"text", msg.Text,
	)
	return nil
}
