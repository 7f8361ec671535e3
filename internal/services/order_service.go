package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"merch-service/internal/domain"
	"merch-service/internal/notify"
	"merch-service/internal/repository"
)

// RetryPolicy bounds how often a checkout that lost a serialization race is
// replayed before ErrConflict reaches the caller.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     200 * time.Millisecond,
	}
}

type OrderService struct {
	store          repository.Store
	orders         repository.OrderRepository
	ledger         *Ledger
	dispatcher     notify.DispatcherInterface
	retry          RetryPolicy
	defaultContact string
	tracer         trace.Tracer
	log            zerolog.Logger
}

type OrderServiceOptions struct {
	Retry          RetryPolicy
	DefaultContact string
}

func NewOrderService(
	store repository.Store,
	orders repository.OrderRepository,
	ledger *Ledger,
	dispatcher notify.DispatcherInterface,
	opts OrderServiceOptions,
	tracer trace.Tracer,
	log zerolog.Logger,
) *OrderService {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	return &OrderService{
		store:          store,
		orders:         orders,
		ledger:         ledger,
		dispatcher:     dispatcher,
		retry:          opts.Retry,
		defaultContact: opts.DefaultContact,
		tracer:         tracer,
		log:            log.With().Str("component", "checkout").Logger(),
	}
}

// Checkout reserves stock for every line, records a paid order with its
// items and commits, all in one transaction. A lost serialization race is
// retried with backoff. The confirmation is enqueued only after commit.
//
// Cancellation of ctx is ignored: once started, a checkout either commits or
// rolls back in full.
func (s *OrderService) Checkout(ctx context.Context, req domain.CheckoutRequest, principal *domain.Principal) (*domain.CheckoutResult, error) {
	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "order.checkout", trace.WithAttributes(
		attribute.Int("cart.lines", len(req.Items)),
	))
	defer span.End()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retry.InitialInterval
	b.MaxInterval = s.retry.MaxInterval

	attempts := 0
	order, err := backoff.Retry(ctx, func() (*domain.Order, error) {
		attempts++
		o, err := s.placeOrder(ctx, req)
		if err == nil {
			return o, nil
		}
		if errors.Is(err, domain.ErrConflict) {
			s.log.Warn().Err(err).Int("attempt", attempts).Msg("checkout lost a serialization race")
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.retry.MaxAttempts))
	span.SetAttributes(attribute.Int("checkout.attempts", attempts))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		if errors.Is(err, domain.ErrConflict) {
			err = fmt.Errorf("checkout gave up after %d attempts: %w", attempts, err)
			s.log.Error().Err(err).Msg("checkout retries exhausted")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.enqueueConfirmation(order, req, principal)

	s.log.Info().
		Uint64("order_id", order.ID).
		Int64("total_cents", order.TotalCents).
		Int("items", len(order.Items)).
		Msg("checkout committed")

	return &domain.CheckoutResult{
		OrderID:    order.ID,
		TotalCents: order.TotalCents,
		Items:      order.Items,
	}, nil
}

func (s *OrderService) placeOrder(ctx context.Context, req domain.CheckoutRequest) (*domain.Order, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin checkout: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := s.ledger.Reserve(ctx, tx, req)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		Status:     domain.StatusPaid,
		TotalCents: res.TotalCents,
		CreatedAt:  time.Now().UTC(),
	}
	if err := tx.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	for i := range res.Items {
		res.Items[i].OrderID = order.ID
	}
	if err := tx.CreateOrderItems(ctx, res.Items); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit checkout: %w", err)
	}
	order.Items = res.Items
	return order, nil
}

func (s *OrderService) enqueueConfirmation(order *domain.Order, req domain.CheckoutRequest, principal *domain.Principal) {
	if s.dispatcher == nil {
		return
	}
	n := domain.OrderConfirmation{
		OrderID:    order.ID,
		Contact:    s.contactFor(req, principal),
		TotalCents: order.TotalCents,
		CreatedAt:  order.CreatedAt,
	}
	if err := s.dispatcher.Enqueue(n); err != nil {
		s.log.Warn().Err(err).Uint64("order_id", order.ID).Msg("order confirmation dropped")
	}
}

func (s *OrderService) contactFor(req domain.CheckoutRequest, principal *domain.Principal) string {
	if c := strings.TrimSpace(req.ContactEmail); c != "" {
		return c
	}
	if principal != nil && strings.Contains(principal.Username, "@") {
		return principal.Username
	}
	return s.defaultContact
}

func (s *OrderService) GetOrderById(ctx context.Context, id uint64) (*domain.Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if o == nil {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}
