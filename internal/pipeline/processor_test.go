package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-buybot/internal/metrics"
	"solana-buybot/internal/model"
	"solana-buybot/internal/notification"
	"solana-buybot/internal/pricing"
)

type memRegistry map[string][]model.SubscriberConfig

func (r memRegistry) Lookup(_ context.Context, mint string) ([]model.SubscriberConfig, error) {
	return r[mint], nil
}

type countingResolver struct {
	calls atomic.Int32
	snap  *model.PriceSnapshot
	err   error
}

func (c *countingResolver) Resolve(_ context.Context, mint string) (*model.PriceSnapshot, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	s := *c.snap
	s.Mint = mint
	return &s, nil
}

type chatSender struct {
	mu   sync.Mutex
	sent []model.Message
	fail map[string]bool
}

func (s *chatSender) Send(_ context.Context, msg model.Message) error {
	if s.fail[msg.ChatID] {
		return errors.New("chat not found")
	}
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return nil
}

type capturePublisher struct {
	alerts []model.BuyAlert
}

func (c *capturePublisher) Publish(_ context.Context, a model.BuyAlert) error {
	c.alerts = append(c.alerts, a)
	return nil
}

func heliusTransfer(mint string, amount string) []byte {
	return []byte(fmt.Sprintf(`{"signature":"sig-%s","tokenTransfers":[{"mint":%q,"tokenAmount":%s}]}`, mint, mint, amount))
}

type fixture struct {
	proc     *Processor
	resolver *countingResolver
	sender   *chatSender
	pub      *capturePublisher
	metrics  *metrics.Metrics
}

func newFixture(reg memRegistry) *fixture {
	f := &fixture{
		resolver: &countingResolver{snap: &model.PriceSnapshot{
			Symbol:   "BONK",
			PriceUSD: decimal.RequireFromString("0.5"),
		}},
		sender:  &chatSender{fail: map[string]bool{}},
		pub:     &capturePublisher{},
		metrics: metrics.NewMetrics(prometheus.NewRegistry()),
	}
	f.proc = NewProcessor(Deps{
		Registry:   reg,
		Prices:     f.resolver,
		Dispatcher: notification.NewDispatcher(f.sender, notification.DispatcherConfig{}, f.metrics),
		Publisher:  f.pub,
		Metrics:    f.metrics,
		Health:     metrics.NewHealthStatus(),
	})
	return f
}

func TestProcess_NoSubscribersSkipsPriceLookup(t *testing.T) {
	f := newFixture(memRegistry{})

	res := f.proc.Process(context.Background(), heliusTransfer("Untracked", "100"))
	assert.Equal(t, DropNoSubscriber, res.Dropped)
	assert.Zero(t, f.resolver.calls.Load())
	assert.Empty(t, f.sender.sent)
	assert.Empty(t, f.pub.alerts)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EventsDropped.WithLabelValues(DropNoSubscriber)))
}

func TestProcess_OneFailingChatDoesNotAffectOther(t *testing.T) {
	a := model.NewSubscriberConfig("chat-a")
	a.Mint = "MintA"
	b := model.NewSubscriberConfig("chat-b")
	b.Mint = "MintA"
	f := newFixture(memRegistry{"MintA": {a, b}})
	f.sender.fail["chat-a"] = true

	// 100 tokens at $0.5 = $50: above the $15 minimum, no whale.
	res := f.proc.Process(context.Background(), heliusTransfer("MintA", "100"))
	require.Empty(t, res.Dropped)
	assert.Equal(t, 2, res.Subscribers)
	assert.Equal(t, notification.Report{Sent: 1, Failed: 1}, res.Report)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "chat-b", f.sender.sent[0].ChatID)
	assert.EqualValues(t, 1, f.resolver.calls.Load(), "one lookup per event, not per subscriber")

	require.Len(t, f.pub.alerts, 1)
	alert := f.pub.alerts[0]
	assert.Equal(t, "MintA", alert.Mint)
	assert.Equal(t, 2, alert.Subscribers)
	assert.Equal(t, 1, alert.Delivered)
	assert.True(t, alert.NotionalUSD.Equal(decimal.NewFromInt(50)))
}

func TestProcess_MissingAmountDeliversNothing(t *testing.T) {
	sub := model.NewSubscriberConfig("chat-a")
	f := newFixture(memRegistry{"MintA": {sub}})

	res := f.proc.Process(context.Background(), []byte(`{"tokenTransfers":[{"mint":"MintA"}]}`))
	assert.Equal(t, DropUnusable, res.Dropped)
	assert.Zero(t, f.resolver.calls.Load())
	assert.Empty(t, f.sender.sent)
}

func TestProcess_PriceUnavailable(t *testing.T) {
	sub := model.NewSubscriberConfig("chat-a")
	f := newFixture(memRegistry{"MintA": {sub}})
	f.resolver.err = fmt.Errorf("%w: MintA: no pairs", pricing.ErrPriceUnavailable)

	res := f.proc.Process(context.Background(), heliusTransfer("MintA", "100"))
	assert.Equal(t, DropNoPrice, res.Dropped)
	assert.Empty(t, f.sender.sent)
	assert.Empty(t, f.pub.alerts)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PriceLookups.WithLabelValues("unavailable")))
}

func TestProcess_BelowMinimum(t *testing.T) {
	sub := model.NewSubscriberConfig("chat-a")
	f := newFixture(memRegistry{"MintA": {sub}})

	// 10 tokens at $0.5 = $5 < $15.
	res := f.proc.Process(context.Background(), heliusTransfer("MintA", "10"))
	assert.Equal(t, DropBelowMin, res.Dropped)
	assert.Empty(t, f.sender.sent)
}

func TestProcess_WhaleSendsTwoMessages(t *testing.T) {
	sub := model.NewSubscriberConfig("chat-a")
	f := newFixture(memRegistry{"MintA": {sub}})

	// 4000 tokens at $0.5 = $2000 >= $1000 whale threshold.
	res := f.proc.Process(context.Background(), heliusTransfer("MintA", "4000"))
	assert.Equal(t, 2, res.Messages)
	require.Len(t, f.sender.sent, 2)
	assert.Equal(t, model.KindStandard, f.sender.sent[0].Kind)
	assert.Equal(t, model.KindWhale, f.sender.sent[1].Kind)
}
