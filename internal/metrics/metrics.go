package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the buy-alert service.
type Metrics struct {
	EventsReceived prometheus.Counter
	EventsDropped  *prometheus.CounterVec // labels: reason

	PriceLookups   *prometheus.CounterVec // labels: result=ok|unavailable|circuit_open
	PriceLookupDur prometheus.Histogram
	BreakerState   prometheus.Gauge // 0=closed, 1=open, 2=half-open
	BreakerTrips   prometheus.Counter

	Messages *prometheus.CounterVec // labels: kind, result=sent|failed|skipped
	SendDur  prometheus.Histogram

	QueueDepth   prometheus.Gauge
	QueueDropped prometheus.Counter
	JobPanics    prometheus.Counter

	FeedClients   prometheus.Gauge
	FeedDrops     *prometheus.CounterVec // labels: sink
	BotUpdates    *prometheus.CounterVec // labels: type=message|callback
	ConfigChanges *prometheus.CounterVec // labels: field
}

// NewMetrics builds the collectors and registers them with reg. Passing
// prometheus.DefaultRegisterer exposes them on promhttp.Handler(); tests
// pass a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buybot_events_received_total",
			Help: "Raw webhook events accepted for processing",
		}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buybot_events_dropped_total",
			Help: "Events that produced no notification, by reason",
		}, []string{"reason"}),

		PriceLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buybot_price_lookups_total",
			Help: "Price lookups by result",
		}, []string{"result"}),
		PriceLookupDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "buybot_price_lookup_duration_seconds",
			Help:    "Price lookup latency including cache",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 7.5},
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "buybot_price_breaker_state",
			Help: "Price source circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buybot_price_breaker_trips_total",
			Help: "Times the price source circuit breaker tripped open",
		}),

		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buybot_messages_total",
			Help: "Telegram messages by kind and result",
		}, []string{"kind", "result"}),
		SendDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "buybot_send_duration_seconds",
			Help:    "Telegram send latency",
			Buckets: prometheus.DefBuckets,
		}),

		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "buybot_queue_depth",
			Help: "Events waiting in the pipeline queue",
		}),
		QueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buybot_queue_dropped_total",
			Help: "Events dropped because the pipeline queue stayed full",
		}),
		JobPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buybot_job_panics_total",
			Help: "Pipeline jobs that panicked and were recovered",
		}),

		FeedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "buybot_feed_clients",
			Help: "Connected WebSocket alert feed clients",
		}),
		FeedDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buybot_feed_drops_total",
			Help: "Alerts dropped by a slow feed sink",
		}, []string{"sink"}),
		BotUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buybot_bot_updates_total",
			Help: "Telegram updates handled by the configuration bot",
		}, []string{"type"}),
		ConfigChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buybot_config_changes_total",
			Help: "Subscriber settings committed through the bot, by field",
		}, []string{"field"}),
	}

	reg.MustRegister(
		m.EventsReceived,
		m.EventsDropped,
		m.PriceLookups,
		m.PriceLookupDur,
		m.BreakerState,
		m.BreakerTrips,
		m.Messages,
		m.SendDur,
		m.QueueDepth,
		m.QueueDropped,
		m.JobPanics,
		m.FeedClients,
		m.FeedDrops,
		m.BotUpdates,
		m.ConfigChanges,
	)

	return m
}
