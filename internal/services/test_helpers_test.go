package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"merch-service/internal/domain"
	"merch-service/internal/notify"
	"merch-service/internal/repository/memory"
)

const (
	TestHeadsetSlug  = "headset-void"
	TestHeadsetPrice = int64(89000)
	TestHeadsetStock = int64(5)
)

var testTracer = noop.NewTracerProvider().Tracer("test")

func testRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func seedProduct(t *testing.T, store *memory.Store, slug, title string, price, stock int64) domain.Product {
	t.Helper()
	p := &domain.Product{Slug: slug, Title: title, PriceCents: price, Stock: stock}
	require.NoError(t, store.Products().Create(context.Background(), p))
	return *p
}

func seedHeadset(t *testing.T, store *memory.Store) domain.Product {
	return seedProduct(t, store, TestHeadsetSlug, "Headset Void", TestHeadsetPrice, TestHeadsetStock)
}

func stockOf(t *testing.T, store *memory.Store, id uint64) int64 {
	t.Helper()
	products, err := store.Products().List(context.Background())
	require.NoError(t, err)
	for _, p := range products {
		if p.ID == id {
			return p.Stock
		}
	}
	t.Fatalf("product %d not found", id)
	return 0
}

func newMemoryOrderService(store *memory.Store, d notify.DispatcherInterface) *OrderService {
	return NewOrderService(store, store.Orders(), NewLedger(testTracer), d,
		OrderServiceOptions{Retry: testRetry(), DefaultContact: "orders@shop.test"},
		testTracer, zerolog.Nop())
}

func cart(lines ...domain.CartLine) domain.CheckoutRequest {
	return domain.CheckoutRequest{Items: lines}
}

func line(id uint64, qty int64) domain.CartLine {
	return domain.CartLine{ProductID: id, Quantity: qty}
}
