// Package gateway serves the live buy-alert feed over WebSocket.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"solana-buybot/internal/logger"
	"solana-buybot/internal/metrics"
	"solana-buybot/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub tracks feed clients and broadcasts every BuyAlert to them. It
// implements model.AlertPublisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64

	replay  *ReplayBuffer
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewHub creates a hub remembering the last replaySize alerts. m may be nil.
func NewHub(replaySize int, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(replaySize),
		metrics: m,
		log:     logger.Component("gateway"),
	}
}

// Publish assigns the next sequence number to alert and fans it out.
// Slow clients lose the frame instead of blocking the pipeline.
func (h *Hub) Publish(_ context.Context, alert model.BuyAlert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("gateway: marshal alert: %w", err)
	}

	// Sequencing, replay and fan-out share one critical section so a
	// connecting client sees each alert exactly once.
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	env := buildEnvelope(alert.Mint, data, time.Now().UTC(), h.seq)
	h.replay.Push(h.seq, alert.Mint, env)

	for c := range h.clients {
		if !c.matches(alert.Mint) {
			continue
		}
		select {
		case c.send <- env:
		default:
			if h.metrics != nil {
				h.metrics.FeedDrops.WithLabelValues("ws").Inc()
			}
		}
	}
	return nil
}

// buildEnvelope hand-crafts {"type":"buy","mint":...,"data":...,"ts":...,"seq":N}.
// mint is a base58 address and needs no escaping.
func buildEnvelope(mint string, data []byte, now time.Time, seq int64) []byte {
	buf := make([]byte, 0, len(mint)+len(data)+96)
	buf = append(buf, `{"type":"buy","mint":"`...)
	buf = append(buf, mint...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')
	return buf
}

// ServeHTTP upgrades the request and registers the client.
//
// Query parameters: mint restricts the feed to one token; since=<seq>
// replays buffered alerts newer than seq (default: the whole buffer).
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mint := r.URL.Query().Get("mint")
	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}

	c := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
		mint: mint,
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	for _, e := range h.replay.After(since, mint) {
		select {
		case c.send <- e.Data:
		default:
		}
	}
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.FeedClients.Set(float64(count))
	}

	h.log.Info("ws client connected", "clients", count, "mint", mint)

	go c.writePump()
	go c.readPump()
}

// removeClient unregisters c and closes its send channel.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.FeedClients.Set(float64(count))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.removeClient(c)
	}
}
