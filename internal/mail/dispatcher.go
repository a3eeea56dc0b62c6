package mail

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrQueueFull is returned by Enqueue when every buffer slot is taken.
	ErrQueueFull = errors.New("mail: queue is full")
	// ErrStopped is returned by Enqueue after Stop.
	ErrStopped = errors.New("mail: dispatcher stopped")
)

var _ Queue = (*Dispatcher)(nil)

// Dispatcher is an in-process mail queue: a buffered channel drained by a
// fixed set of workers that hand each message to a Transport.
type Dispatcher struct {
	transport Transport
	config    Config
	logger    *slog.Logger

	queue chan Message
	wg    sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewDispatcher builds a dispatcher. Nothing is delivered until Start.
func NewDispatcher(t Transport, cfg Config, logger *slog.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		transport: t,
		config:    cfg,
		logger:    logger,
		queue:     make(chan Message, cfg.QueueSize),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.logger.Info("starting mail dispatcher",
			slog.Int("workers", d.config.Workers),
			slog.Int("queueSize", d.config.QueueSize),
		)
		for i := 0; i < d.config.Workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
	})
}

// Enqueue schedules msg for delivery and returns immediately.
func (d *Dispatcher) Enqueue(msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	select {
	case d.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending reports how many messages are waiting for a worker.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Stop refuses new messages, lets the workers drain what is already queued
// and waits for them until ctx is done.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.logger.Info("stopping mail dispatcher", slog.Int("pending", len(d.queue)))
		d.mu.Lock()
		d.stopped = true
		close(d.queue)
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.logger.Warn("mail dispatcher did not drain in time", slog.Int("dropped", len(d.queue)))
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.SendTimeout)
	defer cancel()

	if err := d.transport.Send(ctx, msg); err != nil {
		d.logger.Error("mail delivery failed",
			slog.String("kind", string(msg.Kind)),
			slog.String("to", msg.To),
			slog.String("error", err.Error()),
		)
		return
	}
	d.logger.Info("mail delivered",
		slog.String("kind", string(msg.Kind)),
		slog.String("to", msg.To),
	)
}
