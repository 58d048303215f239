// AngelaMos | 2026
// dispatcher.go

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// Dispatcher runs fire-and-forget sends off the request path. Failures
// are logged here and never reach the caller.
type Dispatcher struct {
	sink    Sink
	cfg     DispatcherConfig
	logger  *slog.Logger
	queue   chan Message
	group   errgroup.Group
	mu      sync.RWMutex
	closed  bool
	started atomic.Bool

	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

type DispatcherStats struct {
	Queued  int   `json:"queued"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

func NewDispatcher(
	sink Sink,
	cfg DispatcherConfig,
	logger *slog.Logger,
) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	return &Dispatcher{
		sink:   sink,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan Message, cfg.QueueSize),
	}
}

// Start is idempotent.
func (d *Dispatcher) Start() {
	if !d.started.CompareAndSwap(false, true) {
		return
	}

	for i := 0; i < d.cfg.Workers; i++ {
		worker := i
		d.group.Go(func() error {
			d.run(worker)
			return nil
		})
	}

	d.logger.Info("notification dispatcher started",
		"workers", d.cfg.Workers,
		"queue_size", d.cfg.QueueSize,
	)
}

func (d *Dispatcher) run(worker int) {
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		err := d.sink.Send(ctx, msg)
		cancel()

		if err != nil {
			d.failed.Add(1)
			d.logger.Error("background notification failed",
				"worker", worker,
				"kind", msg.Kind,
				"to", msg.To,
				"error", err,
			)
			continue
		}

		d.sent.Add(1)
		d.logger.Debug("background notification sent",
			"worker", worker,
			"kind", msg.Kind,
		)
	}
}

// Submit never blocks. A full queue drops the message.
func (d *Dispatcher) Submit(msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- msg:
		return nil
	default:
		d.dropped.Add(1)
		d.logger.Warn("notification queue full, dropping message",
			"kind", msg.Kind,
			"to", msg.To,
		)
		return ErrQueueFull
	}
}

// Shutdown stops intake and waits for queued messages to drain, or for ctx.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		//nolint:errcheck // workers never return errors
		_ = d.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("notification dispatcher drained",
			"sent", d.sent.Load(),
			"failed", d.failed.Load(),
		)
		return nil
	case <-ctx.Done():
		return fmt.Errorf(
			"drain notifications: %d still queued: %w",
			len(d.queue),
			ctx.Err(),
		)
	}
}

func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Queued:  len(d.queue),
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
	}
}
