package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// SessionStore keeps per-chat configuration-flow state in Redis. Keys expire
// after ttl; an expired or missing key reads as "".
type SessionStore struct {
	c   *Client
	ttl time.Duration
}

// NewSessionStore returns a store whose entries live for ttl.
func NewSessionStore(c *Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SessionStore{c: c, ttl: ttl}
}

func (s *SessionStore) Get(ctx context.Context, chatID string) (string, error) {
	v, err := s.c.rdb.Get(ctx, s.c.key("session", chatID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get session %s: %w", chatID, err)
	}
	return v, nil
}

func (s *SessionStore) Set(ctx context.Context, chatID, state string) error {
	if err := s.c.rdb.Set(ctx, s.c.key("session", chatID), state, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %s: %w", chatID, err)
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context, chatID string) error {
	if err := s.c.rdb.Del(ctx, s.c.key("session", chatID)).Err(); err != nil {
		return fmt.Errorf("redis del session %s: %w", chatID, err)
	}
	return nil
}
