package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/harvestlane/notifykit/pkg/logger"
)

// sendTimeout bounds every channel attempt. It is intentionally not
// configurable by callers.
const sendTimeout = 10 * time.Second

// SendTask is one channel attempt for one persisted record.
type SendTask struct {
	Delivery Delivery
	Sender   ChannelSender
}

// Submitter accepts channel tasks without blocking.
type Submitter interface {
	Submit(task SendTask) error
}

// StatusUpdater records the outcome of a channel attempt.
type StatusUpdater interface {
	UpdateDeliveryStatus(ctx context.Context, status DeliveryStatus, ids ...string) error
}

// SendPoolStats is a point-in-time snapshot of pool counters.
type SendPoolStats struct {
	Submitted int64 `json:"submitted"`
	Sent      int64 `json:"sent"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
	Queued    int   `json:"queued"`
}

// SendPool runs channel sends off the request path: a bounded queue drained
// by a fixed number of workers under a shared token-bucket limit.
type SendPool struct {
	updater StatusUpdater
	limiter *rate.Limiter
	workers int
	logger  *slog.Logger
	timeout time.Duration

	mu        sync.RWMutex
	queue     chan SendTask
	accepting bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	submitted atomic.Int64
	sent      atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

type sendPoolOptions struct {
	workers    int
	queueSize  int
	ratePerSec float64
	logger     *slog.Logger
}

// SendPoolOption configures a SendPool.
type SendPoolOption func(*sendPoolOptions)

// WithWorkers sets the number of concurrent senders.
func WithWorkers(n int) SendPoolOption {
	return func(o *sendPoolOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSize sets how many tasks may wait before Submit returns ErrPoolFull.
func WithQueueSize(n int) SendPoolOption {
	return func(o *sendPoolOptions) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithRate limits sends per second across all workers. Zero disables the limit.
func WithRate(perSec float64) SendPoolOption {
	return func(o *sendPoolOptions) { o.ratePerSec = perSec }
}

func WithSendPoolLogger(l *slog.Logger) SendPoolOption {
	return func(o *sendPoolOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewSendPool creates a stopped pool. Call Start or Run before submitting.
func NewSendPool(updater StatusUpdater, opts ...SendPoolOption) *SendPool {
	o := &sendPoolOptions{
		workers:    4,
		queueSize:  1024,
		ratePerSec: 10,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	limit := rate.Inf
	burst := 1
	if o.ratePerSec > 0 {
		limit = rate.Limit(o.ratePerSec)
		// burst = rate per sec so short spikes don't block too hard
		burst = max(1, int(o.ratePerSec))
	}

	return &SendPool{
		updater: updater,
		limiter: rate.NewLimiter(limit, burst),
		workers: o.workers,
		logger:  o.logger,
		timeout: sendTimeout,
		queue:   make(chan SendTask, o.queueSize),
	}
}

// Start launches the workers. It is a no-op on a running pool.
func (p *SendPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accepting {
		return
	}
	if p.cancel != nil {
		// stopped pools get a fresh queue
		p.queue = make(chan SendTask, cap(p.queue))
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.accepting = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(p.ctx, p.queue)
	}
	p.logger.Info("send pool started",
		logger.Count("workers", p.workers),
		logger.Count("queue_size", cap(p.queue)))
}

// Stop rejects new tasks and drains the queue. If ctx expires first the
// remaining sends are cancelled and ctx.Err() is returned.
func (p *SendPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.accepting {
		p.mu.Unlock()
		return nil
	}
	p.accepting = false
	close(p.queue)
	cancel := p.cancel
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		p.logger.Info("send pool stopped")
		return nil
	case <-ctx.Done():
		cancel()
		<-done
		p.logger.Warn("send pool stopped before queue drained", logger.Error(ctx.Err()))
		return ctx.Err()
	}
}

// Run starts the pool and returns a function suitable for errgroup. The pool
// drains for up to drain after ctx is cancelled.
func (p *SendPool) Run(ctx context.Context, drain time.Duration) func() error {
	return func() error {
		p.Start()
		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), drain)
		defer cancel()
		if err := p.Stop(stopCtx); err != nil {
			return fmt.Errorf("send pool drain: %w", err)
		}
		return nil
	}
}

// Submit enqueues a task without blocking.
func (p *SendPool) Submit(task SendTask) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.accepting {
		p.rejected.Add(1)
		return ErrPoolStopped
	}
	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return nil
	default:
		p.rejected.Add(1)
		return ErrPoolFull
	}
}

// Stats returns the pool counters.
func (p *SendPool) Stats() SendPoolStats {
	p.mu.RLock()
	queued := len(p.queue)
	p.mu.RUnlock()
	return SendPoolStats{
		Submitted: p.submitted.Load(),
		Sent:      p.sent.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
		Queued:    queued,
	}
}

func (p *SendPool) worker(ctx context.Context, q <-chan SendTask) {
	defer p.wg.Done()
	for task := range q {
		p.process(ctx, task)
	}
}

func (p *SendPool) process(ctx context.Context, task SendTask) {
	n := task.Delivery.Notification
	ch := task.Sender.Channel()

	err := p.limiter.Wait(ctx)
	if err == nil {
		err = p.send(ctx, task)
	}

	status := DeliverySent
	if err != nil {
		status = DeliveryFailed
		p.failed.Add(1)
		p.logger.ErrorContext(ctx, "channel send failed",
			logger.NotificationID(n.ID),
			logger.RecipientID(n.RecipientID),
			logger.Channel(string(ch)),
			logger.EventType(string(n.EventType)),
			logger.Error(err))
	} else {
		p.sent.Add(1)
	}

	if p.updater == nil {
		return
	}
	// The status write must land even when the pool is being force-stopped.
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.updater.UpdateDeliveryStatus(uctx, status, n.ID); err != nil {
		p.logger.ErrorContext(ctx, "failed to record delivery status",
			logger.NotificationID(n.ID),
			slog.String("status", string(status)),
			logger.Error(err))
	}
}

func (p *SendPool) send(ctx context.Context, task SendTask) (err error) {
	sctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel sender panic: %v", r)
		}
	}()
	return task.Sender.Send(sctx, task.Delivery)
}
