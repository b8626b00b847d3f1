package botcmd

import (
	"context"
	"sync"
	"time"
)

// Session states. A chat with no stored state is idle.
const (
	StateIdle          = ""
	StateAwaitEmoji    = "awaiting-emoji"
	StateAwaitMin      = "awaiting-min"
	StateAwaitStep     = "awaiting-step"
	StateAwaitWhaleUSD = "awaiting-whale-usd"
	StateAwaitSite     = "awaiting-site"
	StateAwaitTwitter  = "awaiting-twitter"
	StateAwaitBanner   = "awaiting-banner"
)

// SessionStore remembers which field a chat is about to edit. Expired or
// unknown chats read as StateIdle. Implemented by MemorySessions and by the
// Redis-backed store.
type SessionStore interface {
	Get(ctx context.Context, chatID string) (string, error)
	Set(ctx context.Context, chatID, state string) error
	Clear(ctx context.Context, chatID string) error
}

type sessionEntry struct {
	state   string
	expires time.Time
}

// MemorySessions is an in-process SessionStore with per-entry TTL.
type MemorySessions struct {
	mu      sync.Mutex
	entries map[string]sessionEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemorySessions creates a store whose entries expire after ttl (default 5m).
func NewMemorySessions(ttl time.Duration) *MemorySessions {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemorySessions{
		entries: make(map[string]sessionEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemorySessions) Get(_ context.Context, chatID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[chatID]
	if !ok {
		return StateIdle, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, chatID)
		return StateIdle, nil
	}
	return e.state, nil
}

func (m *MemorySessions) Set(_ context.Context, chatID, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state == StateIdle {
		delete(m.entries, chatID)
		return nil
	}
	m.entries[chatID] = sessionEntry{state: state, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemorySessions) Clear(_ context.Context, chatID string) error {
	m.mu.Lock()
	delete(m.entries, chatID)
	m.mu.Unlock()
	return nil
}

// Sweep removes expired entries and returns how many were removed.
func (m *MemorySessions) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored (possibly expired) entries.
func (m *MemorySessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *MemorySessions) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
