// Package pipeline runs one webhook event through normalize, subscriber
// lookup, pricing, composition and delivery.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"solana-buybot/internal/compose"
	"solana-buybot/internal/logger"
	"solana-buybot/internal/metrics"
	"solana-buybot/internal/model"
	"solana-buybot/internal/normalize"
	"solana-buybot/internal/notification"
	"solana-buybot/internal/pricing"
)

// Dispatcher delivers a batch of composed messages.
type Dispatcher interface {
	Dispatch(ctx context.Context, msgs []model.Message) notification.Report
}

// Result is the outcome of processing one raw event.
type Result struct {
	Event       model.BuyEvent
	Subscribers int
	Messages    int
	Report      notification.Report
	Dropped     string // non-empty reason when the event produced nothing
}

// Processor is stateless apart from its collaborators and safe for
// concurrent use.
type Processor struct {
	registry   model.SubscriberRegistry
	prices     model.PriceResolver
	dispatcher Dispatcher
	publisher  model.AlertPublisher // may be nil
	metrics    *metrics.Metrics     // may be nil
	health     *metrics.HealthStatus
	now        func() time.Time
	log        *slog.Logger
}

// Deps bundles the collaborators of a Processor.
type Deps struct {
	Registry   model.SubscriberRegistry
	Prices     model.PriceResolver
	Dispatcher Dispatcher
	Publisher  model.AlertPublisher
	Metrics    *metrics.Metrics
	Health     *metrics.HealthStatus
}

func NewProcessor(d Deps) *Processor {
	return &Processor{
		registry:   d.Registry,
		prices:     d.Prices,
		dispatcher: d.Dispatcher,
		publisher:  d.Publisher,
		metrics:    d.Metrics,
		health:     d.Health,
		now:        time.Now,
		log:        logger.Component("pipeline"),
	}
}

// Drop reasons, also used as metric labels.
const (
	DropUnusable     = "unusable"
	DropNoSubscriber = "no_subscribers"
	DropLookupFailed = "lookup_failed"
	DropNoPrice      = "price_unavailable"
	DropBelowMin     = "below_min"
)

// Process handles one raw Helius record. Every failure is contained: the
// returned Result says what happened and nothing propagates to the caller.
func (p *Processor) Process(ctx context.Context, raw []byte) Result {
	if p.metrics != nil {
		p.metrics.EventsReceived.Inc()
	}
	if p.health != nil {
		p.health.SetLastEventAt(p.now())
	}

	ev, err := normalize.Normalize(raw)
	if err != nil {
		p.log.Debug("event skipped", "err", err)
		return p.drop(Result{}, DropUnusable)
	}

	traceID := ev.Signature
	if traceID == "" {
		traceID = logger.GenerateTraceID(ev.TraceKey(), p.now())
	}
	ctx = logger.WithTraceID(ctx, traceID)
	log := logger.From(ctx, p.log)
	res := Result{Event: ev}

	subs, err := p.registry.Lookup(ctx, ev.Mint)
	if err != nil {
		log.Error("subscriber lookup failed", "mint", ev.Mint, "err", err)
		return p.drop(res, DropLookupFailed)
	}
	res.Subscribers = len(subs)
	if len(subs) == 0 {
		return p.drop(res, DropNoSubscriber)
	}

	snap, err := p.resolve(ctx, ev.Mint)
	if err != nil {
		log.Warn("price unavailable", "mint", ev.Mint, "subscribers", len(subs), "err", err)
		return p.drop(res, DropNoPrice)
	}

	var msgs []model.Message
	for _, sub := range subs {
		msgs = append(msgs, compose.Compose(ev, *snap, sub)...)
	}
	res.Messages = len(msgs)
	if len(msgs) == 0 {
		return p.drop(res, DropBelowMin)
	}

	res.Report = p.dispatcher.Dispatch(ctx, msgs)
	log.Info("event delivered",
		"mint", ev.Mint,
		"symbol", snap.Symbol,
		"notional_usd", compose.Notional(ev, *snap).StringFixed(2),
		"subscribers", len(subs),
		"sent", res.Report.Sent,
		"failed", res.Report.Failed,
		"skipped", res.Report.Skipped,
	)

	if p.publisher != nil {
		alert := model.NewBuyAlert(ev, *snap, len(subs), p.now())
		alert.Delivered = res.Report.Sent
		if err := p.publisher.Publish(ctx, alert); err != nil {
			log.Warn("alert publish failed", "err", err)
		}
	}
	return res
}

func (p *Processor) resolve(ctx context.Context, mint string) (*model.PriceSnapshot, error) {
	start := time.Now()
	snap, err := p.prices.Resolve(ctx, mint)
	if p.metrics != nil {
		p.metrics.PriceLookupDur.Observe(time.Since(start).Seconds())
		result := "ok"
		if err != nil {
			result = "unavailable"
			if errors.Is(err, pricing.ErrCircuitOpen) {
				result = "circuit_open"
			}
		}
		p.metrics.PriceLookups.WithLabelValues(result).Inc()
	}
	if err == nil && snap == nil {
		err = pricing.ErrPriceUnavailable
	}
	return snap, err
}

func (p *Processor) drop(res Result, reason string) Result {
	res.Dropped = reason
	if p.metrics != nil {
		p.metrics.EventsDropped.WithLabelValues(reason).Inc()
	}
	return res
}
