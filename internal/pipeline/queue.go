package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"solana-buybot/internal/logger"
	"solana-buybot/internal/metrics"
)

var (
	// ErrQueueFull is returned by Enqueue when no slot freed up within the wait.
	ErrQueueFull = errors.New("pipeline: queue full")

	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("pipeline: queue closed")
)

// Handler processes one raw event.
type Handler func(ctx context.Context, raw []byte)

// QueueConfig configures a Queue.
type QueueConfig struct {
	Size    int           // buffered events, default 1024
	Workers int           // concurrent handlers, default 4
	Wait    time.Duration // how long Enqueue waits for a free slot, default 1s
}

// Queue decouples webhook acknowledgement from processing. A bounded channel
// feeds a fixed set of workers; a panicking handler is recovered and the
// worker keeps going.
type Queue struct {
	jobs    chan []byte
	handler Handler
	wait    time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewQueue starts cfg.Workers workers running h. m may be nil.
func NewQueue(cfg QueueConfig, h Handler, m *metrics.Metrics) *Queue {
	if cfg.Size <= 0 {
		cfg.Size = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Wait <= 0 {
		cfg.Wait = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		jobs:    make(chan []byte, cfg.Size),
		handler: h,
		wait:    cfg.Wait,
		ctx:     ctx,
		cancel:  cancel,
		metrics: m,
		log:     logger.Component("queue"),
	}
	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.log.Info("queue started", "size", cfg.Size, "workers", cfg.Workers)
	return q
}

// Enqueue hands raw to a worker. When the buffer is full it waits up to the
// configured duration, then drops the event and returns ErrQueueFull.
func (q *Queue) Enqueue(raw []byte) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- raw:
		q.depth()
		return nil
	default:
	}

	timer := time.NewTimer(q.wait)
	defer timer.Stop()
	select {
	case q.jobs <- raw:
		q.depth()
		return nil
	case <-timer.C:
		if q.metrics != nil {
			q.metrics.QueueDropped.Inc()
		}
		q.log.Warn("queue full, event dropped", "capacity", cap(q.jobs))
		return ErrQueueFull
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for raw := range q.jobs {
		q.depth()
		q.run(id, raw)
	}
}

func (q *Queue) run(id int, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			if q.metrics != nil {
				q.metrics.JobPanics.Inc()
			}
			q.log.Error("handler panic recovered",
				"worker", id,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	q.handler(q.ctx, raw)
}

func (q *Queue) depth() {
	if q.metrics != nil {
		q.metrics.QueueDepth.Set(float64(len(q.jobs)))
	}
}

// Len returns the number of buffered events.
func (q *Queue) Len() int { return len(q.jobs) }

// Close stops accepting events and waits for buffered ones to finish. If ctx
// expires first, in-flight handlers see their context cancelled.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}
