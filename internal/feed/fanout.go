// Package feed distributes event-level BuyAlerts to outbound sinks
// (WebSocket hub, Kafka, HTTP webhook).
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"solana-buybot/internal/logger"
	"solana-buybot/internal/model"
)

// FanOut broadcasts alerts to every registered sink. Each sink has its own
// buffered channel and goroutine; if a sink's channel is full the alert is
// dropped for that sink so a slow consumer never blocks the pipeline.
// FanOut itself implements model.AlertPublisher.
type FanOut struct {
	mu      sync.RWMutex
	sinks   []*sink
	bufSize int
	timeout time.Duration
	wg      sync.WaitGroup
	closed  bool
	log     *slog.Logger

	// OnDrop is called with the sink name when an alert is dropped because
	// the sink's buffer is full.
	OnDrop func(name string)

	// OnError is called with the sink name when a sink's Publish fails.
	OnError func(name string, err error)
}

type sink struct {
	name string
	pub  model.AlertPublisher
	ch   chan model.BuyAlert
}

// ChannelStat is the saturation of one sink buffer.
type ChannelStat struct {
	Name string
	Len  int
	Cap  int
}

// New creates a FanOut. bufSize is the per-sink buffer; timeout bounds each
// sink Publish call (default 5s).
func New(bufSize int, timeout time.Duration) *FanOut {
	if bufSize <= 0 {
		bufSize = 64
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FanOut{
		bufSize: bufSize,
		timeout: timeout,
		log:     logger.Component("feed"),
	}
}

// Add registers a sink and starts its delivery goroutine.
func (f *FanOut) Add(name string, pub model.AlertPublisher) {
	s := &sink{name: name, pub: pub, ch: make(chan model.BuyAlert, f.bufSize)}

	f.mu.Lock()
	f.sinks = append(f.sinks, s)
	f.mu.Unlock()

	f.wg.Add(1)
	go f.run(s)
}

func (f *FanOut) run(s *sink) {
	defer f.wg.Done()
	for alert := range s.ch {
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		err := s.pub.Publish(ctx, alert)
		cancel()
		if err == nil {
			continue
		}
		if f.OnError != nil {
			f.OnError(s.name, err)
		}
		f.log.Warn("sink publish failed", "sink", s.name, "mint", alert.Mint, "err", err)
	}
}

// Publish queues alert for every sink. It never blocks and never fails.
func (f *FanOut) Publish(_ context.Context, alert model.BuyAlert) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil
	}
	for _, s := range f.sinks {
		select {
		case s.ch <- alert:
		default:
			if f.OnDrop != nil {
				f.OnDrop(s.name)
			} else {
				f.log.Warn("sink buffer full, dropping alert", "sink", s.name, "mint", alert.Mint)
			}
		}
	}
	return nil
}

// Close stops accepting alerts and waits for sinks to drain their buffers.
func (f *FanOut) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	for _, s := range f.sinks {
		close(s.ch)
	}
	f.mu.Unlock()
	f.wg.Wait()
}

// ChannelStats reports buffer usage per sink.
func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.sinks))
	for i, s := range f.sinks {
		stats[i] = ChannelStat{Name: s.name, Len: len(s.ch), Cap: cap(s.ch)}
	}
	return stats
}
