package infra

import (
	"context"

	"merch-service/internal/domain"
)

type WebhookClientInterface interface {
	Send(ctx context.Context, n domain.OrderConfirmation) error
}

var _ WebhookClientInterface = (*WebhookClient)(nil)
