package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"merch-service/internal/domain"
)

// WebhookClient posts order confirmations to an HTTP endpoint, typically a
// mail relay.
type WebhookClient struct {
	url    string
	client *resty.Client
}

func NewWebhookClient(url string, timeout time.Duration) *WebhookClient {
	return &WebhookClient{
		url: url,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

func (c *WebhookClient) Send(ctx context.Context, n domain.OrderConfirmation) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(n).
		Post(c.url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}
