package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-buybot/internal/metrics"
)

func TestQueue_ProcessesAll(t *testing.T) {
	var n atomic.Int32
	q := NewQueue(QueueConfig{Size: 8, Workers: 3}, func(context.Context, []byte) { n.Add(1) }, nil)

	for i := 0; i < 20; i++ {
		require.NoError(t, q.Enqueue([]byte("x")))
	}
	require.NoError(t, q.Close(context.Background()))
	assert.EqualValues(t, 20, n.Load())
}

func TestQueue_RecoversPanics(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	var ok atomic.Int32
	q := NewQueue(QueueConfig{Workers: 1}, func(_ context.Context, raw []byte) {
		if string(raw) == "boom" {
			panic("bad payload")
		}
		ok.Add(1)
	}, m)

	q.Enqueue([]byte("boom"))
	q.Enqueue([]byte("fine"))
	require.NoError(t, q.Close(context.Background()))

	assert.EqualValues(t, 1, ok.Load(), "worker survives the panic")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobPanics))
}

func TestQueue_DropsWhenFull(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue(QueueConfig{Size: 1, Workers: 1, Wait: 10 * time.Millisecond}, func(context.Context, []byte) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	}, m)

	require.NoError(t, q.Enqueue([]byte("1")))
	<-started
	require.NoError(t, q.Enqueue([]byte("2")))
	assert.ErrorIs(t, q.Enqueue([]byte("3")), ErrQueueFull)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueueDropped))

	close(release)
	require.NoError(t, q.Close(context.Background()))
	assert.ErrorIs(t, q.Enqueue([]byte("4")), ErrQueueClosed)
}

func TestQueue_CloseTimeoutCancelsHandlers(t *testing.T) {
	var once sync.Once
	running := make(chan struct{})
	q := NewQueue(QueueConfig{Workers: 1}, func(ctx context.Context, _ []byte) {
		once.Do(func() { close(running) })
		<-ctx.Done()
	}, nil)

	q.Enqueue([]byte("x"))
	<-running

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Close(ctx), context.DeadlineExceeded)
}
