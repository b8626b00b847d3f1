package model

import "context"

// ── Port Interfaces ──
// These interfaces decouple the alert pipeline from concrete adapters
// (DexScreener, SQLite, Redis, Telegram, Kafka). Each adapter satisfies one
// or more of them.

// PriceResolver resolves the current USD price of a token.
type PriceResolver interface {
	// Resolve returns a fresh snapshot for mint. Any upstream problem is
	// reported as an error wrapping pricing.ErrPriceUnavailable.
	Resolve(ctx context.Context, mint string) (*PriceSnapshot, error)
}

// SubscriberRegistry answers which chats track a token.
type SubscriberRegistry interface {
	// Lookup returns every subscriber bound to mint. An untracked mint
	// yields an empty slice, not an error.
	Lookup(ctx context.Context, mint string) ([]SubscriberConfig, error)
}

// SubscriberStore is the read/write side used by the configuration flow.
type SubscriberStore interface {
	SubscriberRegistry

	// Get returns the config of one chat or an error wrapping ErrNotFound.
	Get(ctx context.Context, chatID string) (*SubscriberConfig, error)

	// Upsert replaces the full row for cfg.ChatID, inserting it if absent.
	Upsert(ctx context.Context, cfg SubscriberConfig) error
}

// MessageSender delivers one rendered message.
type MessageSender interface {
	Send(ctx context.Context, msg Message) error
}

// AlertPublisher publishes event-level alerts to a feed.
type AlertPublisher interface {
	Publish(ctx context.Context, alert BuyAlert) error
}
