// Package sqlite persists subscriber configurations in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"solana-buybot/internal/logger"
	"solana-buybot/internal/model"
)

// Config configures the registry.
type Config struct {
	DBPath string // path to the SQLite file, e.g. "buybot.db"
}

// Registry stores one row per chat in the groups table. It implements
// model.SubscriberStore.
type Registry struct {
	db  *sql.DB
	log *slog.Logger
}

// DB returns the underlying sql.DB for health checks.
func (r *Registry) DB() *sql.DB { return r.db }

// New opens (or creates) the database in WAL mode and ensures the schema.
func New(cfg Config) (*Registry, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// One connection: the bot and the pipeline share a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log := logger.Component("sqlite")
	log.Info("opened database", "path", cfg.DBPath)
	return &Registry{db: db, log: log}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS groups (
			chat_id        TEXT PRIMARY KEY,
			mint           TEXT,
			emoji          TEXT    DEFAULT '🟢',
			min_buy_usd    REAL    DEFAULT 15,
			step_usd       REAL    DEFAULT 3,
			whale_usd      REAL    DEFAULT 1000,
			whale_on       INTEGER DEFAULT 1,
			website        TEXT,
			twitter        TEXT,
			banner_file_id TEXT,
			ads_off        INTEGER DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_groups_mint ON groups (mint);
	`)
	return err
}

const selectColumns = `
	SELECT chat_id,
	       COALESCE(mint, ''),
	       COALESCE(emoji, '🟢'),
	       COALESCE(min_buy_usd, 15),
	       COALESCE(step_usd, 3),
	       COALESCE(whale_usd, 1000),
	       COALESCE(whale_on, 1),
	       COALESCE(website, ''),
	       COALESCE(twitter, ''),
	       COALESCE(banner_file_id, '')
	FROM groups`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfig(s rowScanner) (model.SubscriberConfig, error) {
	var (
		c       model.SubscriberConfig
		whaleOn int
	)
	err := s.Scan(&c.ChatID, &c.Mint, &c.Emoji, &c.MinBuyUSD, &c.StepUSD,
		&c.WhaleUSD, &whaleOn, &c.Website, &c.Twitter, &c.BannerFileID)
	c.WhaleOn = whaleOn != 0
	return c, err
}

// Lookup returns every chat bound to mint, ordered by chat id.
func (r *Registry) Lookup(ctx context.Context, mint string) ([]model.SubscriberConfig, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` WHERE mint = ? ORDER BY chat_id`, mint)
	if err != nil {
		return nil, fmt.Errorf("sqlite lookup %s: %w", mint, err)
	}
	defer rows.Close()

	subs := make([]model.SubscriberConfig, 0)
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite lookup scan: %w", err)
		}
		subs = append(subs, c)
	}
	return subs, rows.Err()
}

// Get returns one chat's config or an error wrapping model.ErrNotFound.
func (r *Registry) Get(ctx context.Context, chatID string) (*model.SubscriberConfig, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE chat_id = ?`, chatID)
	c, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chat %s: %w", chatID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get %s: %w", chatID, err)
	}
	return &c, nil
}

// Upsert writes the full row for cfg.ChatID. ads_off is left untouched.
func (r *Registry) Upsert(ctx context.Context, cfg model.SubscriberConfig) error {
	whaleOn := 0
	if cfg.WhaleOn {
		whaleOn = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO groups (chat_id, mint, emoji, min_buy_usd, step_usd, whale_usd, whale_on, website, twitter, banner_file_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			mint           = excluded.mint,
			emoji          = excluded.emoji,
			min_buy_usd    = excluded.min_buy_usd,
			step_usd       = excluded.step_usd,
			whale_usd      = excluded.whale_usd,
			whale_on       = excluded.whale_on,
			website        = excluded.website,
			twitter        = excluded.twitter,
			banner_file_id = excluded.banner_file_id
	`, cfg.ChatID, nullable(cfg.Mint), cfg.Emoji, cfg.MinBuyUSD, cfg.StepUSD, cfg.WhaleUSD, whaleOn,
		nullable(cfg.Website), nullable(cfg.Twitter), nullable(cfg.BannerFileID))
	if err != nil {
		return fmt.Errorf("sqlite upsert %s: %w", cfg.ChatID, err)
	}
	r.log.Debug("upserted subscriber", "chat_id", cfg.ChatID, "mint", cfg.Mint)
	return nil
}

// Close releases the database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
