package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"merch-service/internal/domain"
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrClosed    = errors.New("notification dispatcher is closed")
)

// DispatcherInterface is what the checkout path depends on. Enqueue must
// never block.
type DispatcherInterface interface {
	Enqueue(n domain.OrderConfirmation) error
}

// Sender performs the actual delivery. A retrying Sender can wrap another
// one without the dispatcher or its callers noticing.
type Sender interface {
	Send(ctx context.Context, n domain.OrderConfirmation) error
}

// Dispatcher delivers confirmations on a fixed pool of workers fed by a
// bounded queue. Delivery failures are logged and dropped.
type Dispatcher struct {
	sender  Sender
	workers int
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan domain.OrderConfirmation
	group  *errgroup.Group
}

func NewDispatcher(sender Sender, workers, buffer int, log zerolog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 1
	}
	return &Dispatcher{
		sender:  sender,
		workers: workers,
		log:     log.With().Str("component", "notify").Logger(),
		queue:   make(chan domain.OrderConfirmation, buffer),
	}
}

// Start launches the workers. They exit once Shutdown has closed the queue
// and every buffered confirmation has been handled.
func (d *Dispatcher) Start(ctx context.Context) {
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for n := range d.queue {
				d.deliver(gctx, n)
			}
			return nil
		})
	}
	d.group = g
}

func (d *Dispatcher) deliver(ctx context.Context, n domain.OrderConfirmation) {
	if err := d.sender.Send(ctx, n); err != nil {
		d.log.Error().Err(err).Uint64("order_id", n.OrderID).Msg("order confirmation not delivered")
		return
	}
	d.log.Info().Uint64("order_id", n.OrderID).Str("contact", n.Contact).Msg("order confirmation delivered")
}

func (d *Dispatcher) Enqueue(n domain.OrderConfirmation) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting confirmations and waits for the queue to drain or
// ctx to expire, whichever comes first.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	if d.group == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- d.group.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ DispatcherInterface = (*Dispatcher)(nil)
