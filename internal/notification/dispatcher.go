package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-buybot/internal/logger"
	"solana-buybot/internal/metrics"
	"solana-buybot/internal/model"
)

// Report summarizes one Dispatch call.
type Report struct {
	Sent    int
	Failed  int
	Skipped int // messages not attempted because an earlier one to the same chat failed
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Concurrency int           // chats delivered in parallel, default 8
	SendTimeout time.Duration // per message, default 10s
}

// Dispatcher fans composed messages out to their chats. Chats are served
// concurrently; messages to one chat go out in order, and a failed message
// stops the rest of that chat's messages for this event. Failures never
// escape Dispatch.
type Dispatcher struct {
	sender      model.MessageSender
	concurrency int
	sendTimeout time.Duration
	metrics     *metrics.Metrics
	log         *slog.Logger
}

// NewDispatcher creates a dispatcher. m may be nil.
func NewDispatcher(sender model.MessageSender, cfg DispatcherConfig, m *metrics.Metrics) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		sender:      sender,
		concurrency: cfg.Concurrency,
		sendTimeout: cfg.SendTimeout,
		metrics:     m,
		log:         logger.Component("dispatcher"),
	}
}

// Dispatch delivers msgs and reports the outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, msgs []model.Message) Report {
	var (
		mu     sync.Mutex
		report Report
		g      errgroup.Group
	)
	g.SetLimit(d.concurrency)

	for _, chat := range groupByChat(msgs) {
		g.Go(func() error {
			r := d.deliverChat(ctx, chat)
			mu.Lock()
			report.Sent += r.Sent
			report.Failed += r.Failed
			report.Skipped += r.Skipped
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return report
}

func (d *Dispatcher) deliverChat(ctx context.Context, msgs []model.Message) Report {
	var r Report
	for i, msg := range msgs {
		start := time.Now()
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		err := d.sender.Send(sendCtx, msg)
		cancel()

		if d.metrics != nil {
			d.metrics.SendDur.Observe(time.Since(start).Seconds())
		}

		if err != nil {
			r.Failed++
			d.count(msg.Kind, "failed")
			logger.From(ctx, d.log).Warn("delivery failed",
				"chat_id", msg.ChatID, "kind", msg.Kind, "err", err)

			for _, rest := range msgs[i+1:] {
				r.Skipped++
				d.count(rest.Kind, "skipped")
			}
			return r
		}

		r.Sent++
		d.count(msg.Kind, "sent")
	}
	return r
}

func (d *Dispatcher) count(kind model.MessageKind, result string) {
	if d.metrics != nil {
		d.metrics.Messages.WithLabelValues(string(kind), result).Inc()
	}
}

// groupByChat keeps first-seen chat order and per-chat message order.
func groupByChat(msgs []model.Message) [][]model.Message {
	index := make(map[string]int)
	var groups [][]model.Message
	for _, m := range msgs {
		i, ok := index[m.ChatID]
		if !ok {
			i = len(groups)
			index[m.ChatID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], m)
	}
	return groups
}
