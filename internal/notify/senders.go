package notify

import (
	"context"

	"github.com/rs/zerolog"

	"merch-service/internal/domain"
	rabbit "merch-service/internal/infra/rabbitmq"
)

const RoutingKeyOrderConfirmation = "order.confirmation"

// PublisherSender hands confirmations to the broker; a mail worker on the
// other side does the actual delivery.
type PublisherSender struct {
	publisher rabbit.PublisherInterface
}

func NewPublisherSender(p rabbit.PublisherInterface) *PublisherSender {
	return &PublisherSender{publisher: p}
}

func (s *PublisherSender) Send(ctx context.Context, n domain.OrderConfirmation) error {
	return s.publisher.Publish(ctx, RoutingKeyOrderConfirmation, n)
}

// LogSender only records the confirmation. Used when no broker or webhook
// is configured.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, n domain.OrderConfirmation) error {
	s.log.Info().
		Uint64("order_id", n.OrderID).
		Str("contact", n.Contact).
		Int64("total_cents", n.TotalCents).
		Msg("order confirmation")
	return nil
}

var (
	_ Sender = (*PublisherSender)(nil)
	_ Sender = (*LogSender)(nil)
)
