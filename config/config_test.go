package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so no stray .env is read.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, ":3000", cfg.Addr())
	assert.Equal(t, "buybot.db", cfg.SQLitePath)
	assert.Equal(t, "X-Helius-Secret", cfg.SecretHeader)
	assert.Equal(t, 7*time.Second, cfg.PriceTimeout)
	assert.Equal(t, 10*time.Second, cfg.PriceCacheTTL)
	assert.Equal(t, 1024, cfg.QueueSize)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 8, cfg.DispatchConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 100, cfg.FeedReplay)
	assert.Equal(t, "buy-alerts", cfg.KafkaTopic)
	assert.True(t, cfg.BotPolling)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoad_MissingToken(t *testing.T) {
	chdirTemp(t)
	t.Setenv("BOT_TOKEN", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingToken)

	t.Setenv("DRY_RUN", "true")
	_, err = Load()
	assert.NoError(t, err, "dry run needs no token")
}

func TestLoad_SecretFallback(t *testing.T) {
	chdirTemp(t)
	t.Setenv("BOT_TOKEN", "x")
	t.Setenv("HELIUS_SECRET", "legacy")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.Secret)

	t.Setenv("WEBHOOK_SECRET", "new")
	cfg, _ = Load()
	assert.Equal(t, "new", cfg.Secret)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	chdirTemp(t)
	t.Setenv("BOT_TOKEN", "x")
	t.Setenv("WORKERS", "many")
	t.Setenv("QUEUE_WAIT", "-1s")
	t.Setenv("BOT_POLLING", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, time.Second, cfg.QueueWait)
	assert.True(t, cfg.BotPolling)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("BOT_TOKEN=from-file\nPORT=8080\n"), 0o600))
	t.Setenv("PORT", "9000")
	// Ensure BOT_TOKEN is unset so the file provides it.
	t.Setenv("BOT_TOKEN", "")
	os.Unsetenv("BOT_TOKEN")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.BotToken)
	assert.Equal(t, "9000", cfg.Port, "real environment wins over .env")
}
