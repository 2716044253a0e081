package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const maxErrorFrames = 32

var (
	// ErrQueueFull is returned by Notify when the queue has no room. The
	// notice is dropped.
	ErrQueueFull = errors.New("collector queue full")

	// ErrClosed is returned by Notify after Shutdown.
	ErrClosed = errors.New("collector closed")
)

// Config configures a Notifier.
type Config struct {
	Environment Environment

	// QueueSize bounds the notices waiting for delivery.
	QueueSize int

	// Workers is the number of concurrent senders.
	Workers int

	// SendTimeout bounds a single delivery.
	SendTimeout time.Duration

	// Registerer receives the collector metrics. Nil means
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	Logger *slog.Logger
}

// Notifier queues notices and delivers them in the background, so a
// failing request never waits for the collector. It implements
// ports.FaultReporter and ports.HealthChecker.
type Notifier struct {
	sender  Sender
	env     Environment
	workers int
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics

	mu      sync.RWMutex
	queue   chan *Notice
	closed  bool
	started bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a Notifier. Call Start before the first notice is expected
// and Shutdown on exit.
func New(sender Sender, cfg Config) (*Notifier, error) {
	if sender == nil {
		return nil, errors.New("sender is required")
	}

	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m, err := newMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("registering collector metrics: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Notifier{
		sender:  sender,
		env:     cfg.Environment,
		workers: max(cfg.Workers, 1),
		timeout: cfg.SendTimeout,
		logger:  logger.With(slog.String("component", "collector.Notifier")),
		metrics: m,
		queue:   make(chan *Notice, max(cfg.QueueSize, 1)),
	}, nil
}

// Start launches the workers. Cancelling ctx aborts deliveries in flight;
// use Shutdown for an orderly stop.
func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started || n.closed {
		return
	}
	n.started = true

	ctx, n.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for range n.workers {
		n.wg.Go(func() { n.work(ctx) })
	}
}

// Shutdown stops accepting notices and waits until the queue is drained or
// ctx is done. In the latter case deliveries in flight are cancelled and
// ctx's error is returned.
func (n *Notifier) Shutdown(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	started := n.started
	n.mu.Unlock()

	if !started {
		for range n.queue {
			n.metrics.inc(resultDropped)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.cancel()
		return nil
	case <-ctx.Done():
		n.cancel()
		<-done
		return ctx.Err()
	}
}

// Notify queues notice without blocking.
func (n *Notifier) Notify(notice *Notice) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		n.metrics.inc(resultDropped)
		return ErrClosed
	}

	select {
	case n.queue <- notice:
		n.metrics.inc(resultQueued)
		return nil
	default:
		n.metrics.inc(resultDropped)
		return ErrQueueFull
	}
}

// ReportPanic queues a notice for a recovered panic.
func (n *Notifier) ReportPanic(ctx context.Context, value any, pcs []uintptr) {
	n.report(ctx, n.env.BuildNotice(ctx, value, pcs))
}

// ReportError queues a notice for an explicit error. The backtrace starts
// at the caller.
func (n *Notifier) ReportError(ctx context.Context, err error) {
	pcs := make([]uintptr, maxErrorFrames)
	pcs = pcs[:runtime.Callers(2, pcs)]

	n.report(ctx, n.env.BuildNotice(ctx, err, pcs))
}

func (n *Notifier) report(ctx context.Context, notice *Notice) {
	if err := n.Notify(notice); err != nil {
		n.logger.WarnContext(ctx, "fault notice dropped",
			slog.String("notice_id", notice.ID),
			slog.String("class", notice.Error.Class),
			slog.Any("error", err),
		)
	}
}

// Name implements ports.HealthChecker.
func (n *Notifier) Name() string {
	return "collector"
}

// Check reports the notifier unhealthy when it is closed, when its queue is
// full, or when the sender reports itself unhealthy.
func (n *Notifier) Check(ctx context.Context) error {
	n.mu.RLock()
	closed := n.closed
	full := len(n.queue) == cap(n.queue)
	n.mu.RUnlock()

	switch {
	case closed:
		return ErrClosed
	case full:
		return ErrQueueFull
	}

	if hc, ok := n.sender.(interface{ Check(context.Context) error }); ok {
		return hc.Check(ctx)
	}

	return nil
}

func (n *Notifier) work(ctx context.Context) {
	for notice := range n.queue {
		n.send(ctx, notice)
	}
}

func (n *Notifier) send(ctx context.Context, notice *Notice) {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	if err := n.sender.Send(ctx, notice); err != nil {
		n.metrics.inc(resultFailed)
		n.logger.WarnContext(ctx, "fault notice not delivered",
			slog.String("notice_id", notice.ID),
			slog.Any("error", err),
		)
		return
	}

	n.metrics.inc(resultSent)
}
