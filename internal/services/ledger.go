package services

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"merch-service/internal/domain"
	"merch-service/internal/repository"
)

// Reservation is what a cart costs once every line has been validated and
// its stock deducted inside the caller's transaction.
type Reservation struct {
	Items      []domain.OrderItem
	TotalCents int64
}

// Ledger validates and applies stock changes. It never opens or finishes a
// transaction itself; the caller owns the Tx.
type Ledger struct {
	tracer trace.Tracer
}

func NewLedger(tracer trace.Tracer) *Ledger {
	return &Ledger{tracer: tracer}
}

// Reserve checks the cart against locked rows and records the deductions.
// Any error leaves the transaction in a state the caller must roll back.
func (l *Ledger) Reserve(ctx context.Context, tx repository.Tx, cart domain.CheckoutRequest) (*Reservation, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.reserve", trace.WithAttributes(
		attribute.Int("cart.lines", len(cart.Items)),
	))
	defer span.End()

	if len(cart.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	for _, line := range cart.Items {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("product %d: %w", line.ProductID, domain.ErrInvalidQuantity)
		}
	}

	ids := cart.ProductIDs()
	locked, err := tx.LockProducts(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	working := make(map[uint64]int64, len(locked))
	for id, p := range locked {
		working[id] = p.Stock
	}

	res := &Reservation{Items: make([]domain.OrderItem, 0, len(cart.Items))}
	for _, line := range cart.Items {
		p, ok := locked[line.ProductID]
		if !ok {
			return nil, &domain.ProductNotFoundError{ProductID: line.ProductID}
		}
		if working[p.ID] < line.Quantity {
			return nil, &domain.InsufficientStockError{
				ProductID: p.ID,
				Title:     p.Title,
				Requested: line.Quantity,
				Available: working[p.ID],
			}
		}
		if p.PriceCents > 0 && line.Quantity > (math.MaxInt64-res.TotalCents)/p.PriceCents {
			return nil, fmt.Errorf("product %d: order total out of range: %w", p.ID, domain.ErrInvalidQuantity)
		}
		working[p.ID] -= line.Quantity
		res.TotalCents += p.PriceCents * line.Quantity
		res.Items = append(res.Items, domain.OrderItem{
			ProductID:       p.ID,
			Quantity:        line.Quantity,
			PriceAtPurchase: p.PriceCents,
		})
	}

	// Write in lock order, one statement per product.
	for _, id := range ids {
		delta := locked[id].Stock - working[id]
		if delta == 0 {
			continue
		}
		if err := tx.DeductStock(ctx, id, delta); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int64("order.total_cents", res.TotalCents))
	return res, nil
}

// Restock adds qty units to a product under the same lock discipline as
// checkout and returns the product as it will read after commit.
func (l *Ledger) Restock(ctx context.Context, tx repository.Tx, productID uint64, qty int64) (*domain.Product, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.restock", trace.WithAttributes(
		attribute.Int64("product.id", int64(productID)),
		attribute.Int64("restock.quantity", qty),
	))
	defer span.End()

	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	locked, err := tx.LockProducts(ctx, []uint64{productID})
	if err != nil {
		return nil, err
	}
	p, ok := locked[productID]
	if !ok {
		return nil, &domain.ProductNotFoundError{ProductID: productID}
	}
	if p.Stock > math.MaxInt64-qty {
		return nil, fmt.Errorf("product %d: stock out of range: %w", productID, domain.ErrInvalidQuantity)
	}
	if err := tx.AddStock(ctx, productID, qty); err != nil {
		return nil, err
	}
	p.Stock += qty
	return &p, nil
}
