// Package webhook receives Helius enhanced-transaction batches.
package webhook

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"solana-buybot/internal/logger"
	"solana-buybot/internal/normalize"
)

// DefaultSecretHeader carries the shared secret when none is configured.
const DefaultSecretHeader = "X-Helius-Secret"

const maxBodyBytes = 8 << 20

// Enqueuer accepts one raw event for asynchronous processing.
type Enqueuer interface {
	Enqueue(raw []byte) error
}

// Config configures a Handler.
type Config struct {
	Secret       string // empty disables authentication
	SecretHeader string
}

// Handler acknowledges webhook deliveries and hands every event of the batch
// to the queue. After authentication it always answers 200, so upstream
// never retries because of our processing.
type Handler struct {
	queue  Enqueuer
	secret []byte
	header string
	log    *slog.Logger
}

func NewHandler(cfg Config, q Enqueuer) *Handler {
	if cfg.SecretHeader == "" {
		cfg.SecretHeader = DefaultSecretHeader
	}
	return &Handler{
		queue:  q,
		secret: []byte(cfg.Secret),
		header: cfg.SecretHeader,
		log:    logger.Component("webhook"),
	}
}

// Handle is the gin handler for POST /helius.
func (h *Handler) Handle(c *gin.Context) {
	if !h.authorized(c.GetHeader(h.header)) {
		h.log.Warn("webhook rejected", "remote", c.ClientIP())
		c.String(http.StatusForbidden, "forbidden")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		h.log.Warn("webhook body read failed", "err", err)
		c.String(http.StatusOK, "ok")
		return
	}

	events, err := normalize.SplitBatch(body)
	if err != nil {
		h.log.Warn("webhook body dropped", "err", err, "bytes", len(body))
		c.String(http.StatusOK, "ok")
		return
	}

	queued := 0
	for _, ev := range events {
		if err := h.queue.Enqueue(ev); err != nil {
			h.log.Warn("event not queued", "err", err)
			continue
		}
		queued++
	}
	h.log.Debug("webhook accepted", "events", len(events), "queued", queued)
	c.String(http.StatusOK, "ok")
}

func (h *Handler) authorized(got string) bool {
	if len(h.secret) == 0 {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(got), h.secret) == 1
}
